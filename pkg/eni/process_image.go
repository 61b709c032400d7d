package eni

import (
	"fmt"
	"strings"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
)

// Variable is one mapped object of the Process Data Image. The fully
// qualified name follows the dotted convention `<slave>.<pdo>.<entry>`
// for slave-owned variables and `<pdo>.<entry>` (or deeper tool-specific
// trees like `SyncUnits...WcState.WcState`) for master-owned ones.
type Variable struct {
	fullName  string
	slaveName string
	pdoName   string
	entryName string
	direction ethercat.Direction
	dataType  coe.Builtin
	bitSize   int
	bitOffset int
}

func newVariable(doc *xmlVariable, direction ethercat.Direction, slaveNames map[string]bool, path string) (Variable, error) {
	if doc.Name == "" {
		return Variable{}, ethercat.NewEniError(path+".Name", "missing mandatory element")
	}
	varPath := path + "(" + doc.Name + ")"
	bitSize, err := parseNumber(doc.BitSize)
	if err != nil {
		return Variable{}, ethercat.NewEniError(varPath+".BitSize", "malformed size %q", doc.BitSize)
	}
	bitOffset, err := parseNumber(doc.BitOffs)
	if err != nil {
		return Variable{}, ethercat.NewEniError(varPath+".BitOffs", "malformed offset %q", doc.BitOffs)
	}
	dataType, err := parseDataType(doc.DataType, int(bitSize), varPath+".DataType")
	if err != nil {
		return Variable{}, err
	}
	variable := Variable{
		fullName:  doc.Name,
		direction: direction,
		dataType:  dataType,
		bitSize:   int(bitSize),
		bitOffset: int(bitOffset),
	}
	// Classify by the naming convention: a first dotted component that
	// names a configured slave marks a slave variable
	parts := strings.Split(doc.Name, ".")
	if len(parts) >= 3 && slaveNames[parts[0]] {
		variable.slaveName = parts[0]
		variable.pdoName = parts[1]
		variable.entryName = strings.Join(parts[2:], ".")
	} else {
		variable.pdoName = parts[0]
		variable.entryName = parts[len(parts)-1]
	}
	return variable, nil
}

// GetFullName returns the fully qualified dotted name
func (v Variable) GetFullName() string { return v.fullName }

// IsSlaveVariable reports whether the variable belongs to a configured
// slave rather than to the master itself
func (v Variable) IsSlaveVariable() bool { return v.slaveName != "" }

func (v Variable) GetSlaveName() string               { return v.slaveName }
func (v Variable) GetPdoName() string                 { return v.pdoName }
func (v Variable) GetName() string                    { return v.entryName }
func (v Variable) GetDirection() ethercat.Direction   { return v.direction }
func (v Variable) GetDataType() coe.Builtin           { return v.dataType }
func (v Variable) GetBitSize() int                    { return v.bitSize }
func (v Variable) GetBitOffset() int                  { return v.bitOffset }

// VariablesList is a filterable list of PDI variables
type VariablesList []Variable

// Find returns the first variable matching the predicate
func (l VariablesList) Find(predicate func(Variable) bool) (Variable, bool) {
	for _, variable := range l {
		if predicate(variable) {
			return variable, true
		}
	}
	return Variable{}, false
}

// Filter returns the sub-list matching the predicate
func (l VariablesList) Filter(predicate func(Variable) bool) VariablesList {
	var filtered VariablesList
	for _, variable := range l {
		if predicate(variable) {
			filtered = append(filtered, variable)
		}
	}
	return filtered
}

// GetMasterVariables returns variables not owned by any slave
func (l VariablesList) GetMasterVariables() VariablesList {
	return l.Filter(func(v Variable) bool { return !v.IsSlaveVariable() })
}

// GetSlaveVariables returns variables owned by the named slave
func (l VariablesList) GetSlaveVariables(slaveName string) VariablesList {
	return l.Filter(func(v Variable) bool { return v.slaveName == slaveName })
}

// GetPdoVariables returns variables of one PDO of one slave
func (l VariablesList) GetPdoVariables(slaveName string, pdoName string) VariablesList {
	return l.Filter(func(v Variable) bool {
		return v.slaveName == slaveName && v.pdoName == pdoName
	})
}

// VariablesSet groups variable lists by direction
type VariablesSet struct {
	Inputs  VariablesList
	Outputs VariablesList
}

// ProcessImage is the read-only view of the <ProcessImage> element
type ProcessImage struct {
	inputBits  int
	outputBits int
	variables  VariablesSet
}

func newProcessImage(doc *xmlProcessImage, slaveNames map[string]bool) (*ProcessImage, error) {
	if doc == nil {
		return nil, ethercat.NewEniError("Config.ProcessImage", "missing mandatory element")
	}
	image := &ProcessImage{}
	load := func(dir *xmlProcessImageDir, direction ethercat.Direction, path string) (int, VariablesList, error) {
		if dir == nil {
			return 0, nil, nil
		}
		byteSize, err := parseNumber(dir.ByteSize)
		if err != nil {
			return 0, nil, ethercat.NewEniError(path+".ByteSize", "malformed size %q", dir.ByteSize)
		}
		var variables VariablesList
		for i := range dir.Variables {
			variable, err := newVariable(&dir.Variables[i], direction, slaveNames, path+".Variable")
			if err != nil {
				return 0, nil, err
			}
			if variable.bitOffset+variable.bitSize > int(byteSize)*8 {
				return 0, nil, ethercat.NewEniError(path+".Variable("+variable.fullName+")",
					"variable spans past the image end (%d + %d > %d bits)",
					variable.bitOffset, variable.bitSize, byteSize*8)
			}
			variables = append(variables, variable)
		}
		return int(byteSize) * 8, variables, nil
	}
	var err error
	image.inputBits, image.variables.Inputs, err = load(doc.Inputs, ethercat.DirectionInput, "Config.ProcessImage.Inputs")
	if err != nil {
		return nil, err
	}
	image.outputBits, image.variables.Outputs, err = load(doc.Outputs, ethercat.DirectionOutput, "Config.ProcessImage.Outputs")
	if err != nil {
		return nil, err
	}
	return image, nil
}

// GetBitSize returns the PDI size in bits for the given direction
func (p *ProcessImage) GetBitSize(direction ethercat.Direction) int {
	if direction == ethercat.DirectionInput {
		return p.inputBits
	}
	return p.outputBits
}

// GetByteSize returns the PDI size in bytes for the given direction
func (p *ProcessImage) GetByteSize(direction ethercat.Direction) int {
	return p.GetBitSize(direction) / 8
}

// GetVariables returns the variable list for the given direction
func (p *ProcessImage) GetVariables(direction ethercat.Direction) VariablesList {
	if direction == ethercat.DirectionInput {
		return p.variables.Inputs
	}
	return p.variables.Outputs
}

// GetVariablesSet returns both directions' variable lists
func (p *ProcessImage) GetVariablesSet() VariablesSet { return p.variables }

// GetSlaveVariables returns both directions' variables of one slave
func (p *ProcessImage) GetSlaveVariables(slaveName string) VariablesSet {
	return VariablesSet{
		Inputs:  p.variables.Inputs.GetSlaveVariables(slaveName),
		Outputs: p.variables.Outputs.GetSlaveVariables(slaveName),
	}
}

// GetVariable looks a variable up by its fully qualified name
func (p *ProcessImage) GetVariable(fqName string) (Variable, error) {
	for _, list := range []VariablesList{p.variables.Inputs, p.variables.Outputs} {
		if variable, ok := list.Find(func(v Variable) bool { return v.fullName == fqName }); ok {
			return variable, nil
		}
	}
	return Variable{}, fmt.Errorf("%w : variable %q", ethercat.ErrEntryNotFound, fqName)
}

// GetEntryVariable resolves the PDI variable mapped for a slave's PDO
// entry, the lookup the master hands to slave factories
func (p *ProcessImage) GetEntryVariable(direction ethercat.Direction, slaveName string, pdoName string, entryName string) (Variable, error) {
	list := p.GetVariables(direction)
	variable, ok := list.Find(func(v Variable) bool {
		return v.slaveName == slaveName && v.pdoName == pdoName && v.entryName == entryName
	})
	if !ok {
		return Variable{}, fmt.Errorf("%w : variable %s.%s.%s", ethercat.ErrEntryNotFound, slaveName, pdoName, entryName)
	}
	return variable, nil
}
