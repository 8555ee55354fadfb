package worker

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/osmview-go/internal/osmdata"
	"github.com/wegman-software/osmview-go/internal/source"
)

// Request is a unit of work for the background worker
type Request interface {
	fmt.Stringer
	isRequest()
}

// GetMap downloads every node and way in a bounding box
type GetMap struct {
	Bound orb.Bound
}

// SetTargetServer switches the API server used by later requests
type SetTargetServer struct {
	Server *source.Server
}

// CreateChangeset opens a changeset with the given tags
type CreateChangeset struct {
	Tags osm.Tags
}

// CloseChangeset closes an open changeset
type CloseChangeset struct {
	ID osm.ChangesetID
}

func (GetMap) isRequest()          {}
func (SetTargetServer) isRequest() {}
func (CreateChangeset) isRequest() {}
func (CloseChangeset) isRequest()  {}

func (r GetMap) String() string {
	return fmt.Sprintf("GetMap(%v,%v)", r.Bound.Min, r.Bound.Max)
}

func (r SetTargetServer) String() string {
	if r.Server == nil {
		return "SetTargetServer(nil)"
	}
	return "SetTargetServer(" + r.Server.Name + ")"
}

func (r CreateChangeset) String() string {
	return fmt.Sprintf("CreateChangeset(%d tags)", len(r.Tags))
}

func (r CloseChangeset) String() string {
	return fmt.Sprintf("CloseChangeset(%d)", r.ID)
}

// Response answers a Request. Err is set when the request failed; the
// other fields depend on the request type.
type Response struct {
	Request   Request
	Batch     *osmdata.Batch  // GetMap
	Server    *source.Server  // SetTargetServer
	Changeset osm.ChangesetID // CreateChangeset, CloseChangeset
	Err       error
}
