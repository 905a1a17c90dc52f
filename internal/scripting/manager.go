package scripting

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// Hook global names recognised in ability scripts.
const (
	HookOnAttack    = "on_attack"
	HookOnDefend    = "on_defend"
	HookAfterDamage = "after_damage"
)

// ErrNoHooks is returned when a script defines none of the hook globals.
var ErrNoHooks = errors.New("scripting: script defines no hooks")

// vm is one ability's Lua state. An LState is single-threaded, so every call
// holds mu.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed LState per scripted ability and adapts the
// script's globals into ability hooks.
//
// Manager is safe for concurrent use. Different abilities run concurrently;
// calls into the same ability are serialized.
type Manager struct {
	mu        sync.Mutex
	vms       map[string]*vm
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
}

// NewManager creates a Manager whose scripts may execute at most instLimit
// opcodes per call (0 uses DefaultInstructionLimit).
//
// Precondition: roller and logger must be non-nil.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	return &Manager{
		vms:       make(map[string]*vm),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// BindScript loads the Lua file at path into a fresh VM for abilityID and
// returns hooks that call its on_attack, on_defend and after_damage globals.
// Rebinding an ability replaces and closes its previous VM.
//
// Postcondition: Returns ErrNoHooks if none of the hook globals is a function.
func (m *Manager) BindScript(abilityID, path string) (ability.Hooks, error) {
	L := NewSandboxedState()
	m.RegisterModules(L, abilityID)

	lift := LimitInstructions(L, m.instLimit)
	err := L.DoFile(path)
	lift()
	if err != nil {
		L.Close()
		return ability.Hooks{}, fmt.Errorf("scripting: loading %q for %q: %w", path, abilityID, err)
	}

	v := &vm{L: L}
	var hooks ability.Hooks
	if m.defined(L, HookOnAttack) {
		hooks.OnAttack = m.hook(abilityID, v, HookOnAttack)
	}
	if m.defined(L, HookOnDefend) {
		hooks.OnDefend = m.hook(abilityID, v, HookOnDefend)
	}
	if m.defined(L, HookAfterDamage) {
		hooks.AfterDamage = m.hook(abilityID, v, HookAfterDamage)
	}
	if hooks.OnAttack == nil && hooks.OnDefend == nil && hooks.AfterDamage == nil {
		L.Close()
		return ability.Hooks{}, fmt.Errorf("%w: %q", ErrNoHooks, path)
	}

	m.mu.Lock()
	old := m.vms[abilityID]
	m.vms[abilityID] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}

	m.logger.Info("ability script bound",
		zap.String("ability", abilityID),
		zap.String("path", path),
	)
	return hooks, nil
}

func (m *Manager) defined(L *lua.LState, name string) bool {
	return L.GetGlobal(name).Type() == lua.LTFunction
}

func (m *Manager) hook(abilityID string, v *vm, name string) ability.Hook {
	return func(in int) int {
		return m.call(abilityID, v, name, in)
	}
}

// call invokes the named global with in. Lua errors, exhausted instruction
// budgets and non-numeric results are logged at Warn level and leave the
// value unchanged.
func (m *Manager) call(abilityID string, v *vm, name string, in int) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	L := v.L
	fn := L.GetGlobal(name)
	lift := LimitInstructions(L, m.instLimit)
	err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(in))
	lift()
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("ability", abilityID),
			zap.String("hook", name),
			zap.Error(err),
		)
		return in
	}

	ret := L.Get(-1)
	L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		if ret != lua.LNil {
			m.logger.Warn("scripting: hook returned a non-number",
				zap.String("ability", abilityID),
				zap.String("hook", name),
				zap.String("type", ret.Type().String()),
			)
		}
		return in
	}
	return int(math.Floor(float64(n)))
}

// Abilities returns the ids of every bound ability, sorted.
func (m *Manager) Abilities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.vms))
	for id := range m.vms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close closes every VM. Hooks bound before Close must not be called after.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
