package export

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/cache"
	"github.com/wegman-software/osmview-go/internal/source"
)

// DefaultBatchSize is the number of rows buffered per record batch
const DefaultBatchSize = 10000

// Row kinds
const (
	KindArea = "area"
	KindLine = "line"
)

// Row is one way of the paint order
type Row struct {
	Order     int32
	WayID     osm.WayID
	Kind      string
	Area      float64 // signed screen area, 0 for lines
	NodeCount int32
	Tags      osm.Tags
}

var paintOrderSchema = arrow.NewSchema([]arrow.Field{
	{Name: "paint_order", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "way_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "area", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "node_count", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// PaintOrderWriter writes paint order rows to Parquet
type PaintOrderWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	rows      int
}

// NewPaintOrderWriter creates the file at path and a writer for it
func NewPaintOrderWriter(path string, batchSize int) (*PaintOrderWriter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(paintOrderSchema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &PaintOrderWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, paintOrderSchema),
		batchSize: batchSize,
	}, nil
}

// Write buffers a row, flushing a record batch when full
func (w *PaintOrderWriter) Write(r Row) error {
	tags := "{}"
	if data := source.TagsToJSON(r.Tags); data != nil {
		tags = string(data)
	}

	w.builder.Field(0).(*array.Int32Builder).Append(r.Order)
	w.builder.Field(1).(*array.Int64Builder).Append(int64(r.WayID))
	w.builder.Field(2).(*array.StringBuilder).Append(r.Kind)
	w.builder.Field(3).(*array.Float64Builder).Append(r.Area)
	w.builder.Field(4).(*array.Int32Builder).Append(r.NodeCount)
	w.builder.Field(5).(*array.StringBuilder).Append(tags)

	w.count++
	w.rows++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Rows returns the number of rows written so far
func (w *PaintOrderWriter) Rows() int {
	return w.rows
}

func (w *PaintOrderWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes buffered rows and closes the file
func (w *PaintOrderWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	// the parquet writer may already have closed the file
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// PaintOrder lists the in-view ways the way they are drawn: areas largest
// first, then line ways. The area paint order and way area caches must be
// clean.
func PaintOrder(b *cache.Bank) []Row {
	areas := b.AreasInPaintOrder()
	lines := b.LineWays()
	rows := make([]Row, 0, len(areas)+len(lines))

	for _, a := range areas {
		w := b.Way(a.ID)
		rows = append(rows, Row{
			Order:     int32(len(rows)),
			WayID:     a.ID,
			Kind:      KindArea,
			Area:      a.Area,
			NodeCount: int32(len(w.Nodes)),
			Tags:      w.Tags,
		})
	}
	for _, id := range lines {
		w := b.Way(id)
		rows = append(rows, Row{
			Order:     int32(len(rows)),
			WayID:     id,
			Kind:      KindLine,
			NodeCount: int32(len(w.Nodes)),
			Tags:      w.Tags,
		})
	}
	return rows
}

// WritePaintOrder writes the paint order of b to a Parquet file and
// returns the number of rows
func WritePaintOrder(b *cache.Bank, path string, batchSize int) (int, error) {
	w, err := NewPaintOrderWriter(path, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	for _, r := range PaintOrder(b) {
		if err := w.Write(r); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write paint order: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return w.Rows(), nil
}
