package style

import (
	"fmt"

	"github.com/paulmach/osm"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// LuaClassifier lets a script decide area classification. The script
// defines a global is_area(tags) returning true, false or nil; nil (or an
// error) defers to the fallback rules.
type LuaClassifier struct {
	L        *lua.LState
	isArea   lua.LValue
	fallback *AreaRules
	logger   *zap.Logger
}

// NewLuaClassifier creates an empty classifier that always defers to fallback
func NewLuaClassifier(fallback *AreaRules, logger *zap.Logger) *LuaClassifier {
	if fallback == nil {
		fallback = DefaultAreaRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LuaClassifier{
		L:        lua.NewState(),
		isArea:   lua.LNil,
		fallback: fallback,
		logger:   logger,
	}
}

// Close releases Lua resources
func (c *LuaClassifier) Close() {
	c.L.Close()
}

// LoadFile loads and executes a classifier script
func (c *LuaClassifier) LoadFile(path string) error {
	if err := c.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	return c.extractCallback()
}

// LoadString loads and executes classifier code from a string
func (c *LuaClassifier) LoadString(code string) error {
	if err := c.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	return c.extractCallback()
}

func (c *LuaClassifier) extractCallback() error {
	fn := c.L.GetGlobal("is_area")
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("script does not define is_area(tags)")
	}
	c.isArea = fn
	return nil
}

// IsArea runs the script, falling back to the rules when it has no opinion
func (c *LuaClassifier) IsArea(tags osm.Tags) bool {
	if c.isArea == lua.LNil {
		return c.fallback.IsArea(tags)
	}

	tbl := c.L.NewTable()
	for _, t := range tags {
		tbl.RawSetString(t.Key, lua.LString(t.Value))
	}

	if err := c.L.CallByParam(lua.P{
		Fn:      c.isArea,
		NRet:    1,
		Protect: true,
	}, tbl); err != nil {
		c.logger.Warn("is_area failed, using fallback rules", zap.Error(err))
		return c.fallback.IsArea(tags)
	}

	ret := c.L.Get(-1)
	c.L.Pop(1)

	switch ret.Type() {
	case lua.LTBool:
		return lua.LVAsBool(ret)
	case lua.LTNil:
		return c.fallback.IsArea(tags)
	default:
		c.logger.Warn("is_area returned a non-boolean value", zap.String("type", ret.Type().String()))
		return c.fallback.IsArea(tags)
	}
}
