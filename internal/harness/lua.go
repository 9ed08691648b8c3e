package harness

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// LoadScenario runs a Lua scenario script and returns the scenario it
// builds. Scripts construct a scenario with Scenario.new, queue steps
// through its methods, and return it:
//
//	local s = Scenario.new("spend then pass")
//	s:seed(3)
//	s:command("p1", "SPEND", { tokens = 1 })
//	s:command("p1", "ADVANCE")
//	s:assert{ turn = 2 }
//	return s
func LoadScenario(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	registerScenarioConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "seed", Function: scenarioSeed},
	{Name: "command", Function: scenarioCommand},
	{Name: "reject", Function: scenarioReject},
	{Name: "respond", Function: scenarioRespond},
	{Name: "undo", Function: scenarioUndo},
	{Name: "assert", Function: scenarioAssert},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

func scenarioSeed(state *lua.State) int {
	scenario := checkScenario(state)
	scenario.Seed = int64(lua.CheckNumber(state, 2))
	return 0
}

func scenarioCommand(state *lua.State) int {
	appendCommandStep(state, StepCommand)
	return 0
}

func scenarioReject(state *lua.State) int {
	scenario := checkScenario(state)
	player := lua.CheckString(state, 2)
	cmdType := lua.CheckString(state, 3)
	code := lua.OptString(state, 4, "")
	payload := optionalTable(state, 5)

	args := map[string]any{"player": player, "type": cmdType}
	if code != "" {
		args["code"] = code
	}
	if payload != nil {
		args["payload"] = payload
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: StepReject, Args: args})
	return 0
}

func scenarioRespond(state *lua.State) int {
	scenario := checkScenario(state)
	top := state.Top()
	options := make([]any, 0, top-1)
	for i := 2; i <= top; i++ {
		options = append(options, lua.CheckString(state, i))
	}
	scenario.Steps = append(scenario.Steps, Step{
		Kind: StepRespond,
		Args: map[string]any{"options": options},
	})
	return 0
}

func scenarioUndo(state *lua.State) int {
	scenario := checkScenario(state)
	player := lua.CheckString(state, 2)
	scenario.Steps = append(scenario.Steps, Step{
		Kind: StepUndo,
		Args: map[string]any{"player": player},
	})
	return 0
}

func scenarioAssert(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	scenario.Steps = append(scenario.Steps, Step{
		Kind: StepAssert,
		Args: tableToMap(state, 2),
	})
	return 0
}

func appendCommandStep(state *lua.State, kind string) {
	scenario := checkScenario(state)
	player := lua.CheckString(state, 2)
	cmdType := lua.CheckString(state, 3)
	payload := optionalTable(state, 4)

	args := map[string]any{"player": player, "type": cmdType}
	if payload != nil {
		args["payload"] = payload
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: args})
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
