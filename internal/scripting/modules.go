package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the engine global into L for the script bound to
// abilityID:
//
//	engine.chance(pct) -> bool   true with probability pct/100
//	engine.roll(expr)  -> number total of a dice expression such as "2d6+1"
//	engine.log(msg)              debug log tagged with the ability id
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState, abilityID string) {
	engine := L.NewTable()
	L.SetFuncs(engine, map[string]lua.LGFunction{
		"chance": func(L *lua.LState) int {
			pct := L.CheckInt(1)
			L.Push(lua.LBool(m.roller.Chance(pct)))
			return 1
		},
		"roll": func(L *lua.LState) int {
			expr := L.CheckString(1)
			res, err := m.roller.RollExpr(expr)
			if err != nil {
				L.ArgError(1, err.Error())
				return 0
			}
			L.Push(lua.LNumber(res.Total()))
			return 1
		},
		"log": func(L *lua.LState) int {
			m.logger.Debug("script log",
				zap.String("ability", abilityID),
				zap.String("msg", L.CheckString(1)),
			)
			return 0
		},
	})
	L.SetGlobal("engine", engine)
}
