package feeders

import "errors"

// JSON feeder errors
var (
	ErrJSONRead   = errors.New("json: cannot read file")
	ErrJSONDecode = errors.New("json: cannot decode file")
)

// Env feeder errors
var (
	ErrEnvInvalidStructure = errors.New("env: invalid structure")
	ErrEnvEmptyPrefix      = errors.New("env: prefix cannot be empty")
	ErrEnvFieldCannotBeSet = errors.New("env: field cannot be set")
)
