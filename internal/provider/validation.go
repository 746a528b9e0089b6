package provider

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kairei/agent-runtime/pkg/errkit"
)

// Severity classifies a ValidationError (spec.md §7 ErrorContext.severity).
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityError    Severity = "Error"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// ErrorContext carries the location/severity/suggestion metadata every
// provider-config error attaches (spec.md §7).
type ErrorContext struct {
	Location      string
	Severity      Severity
	Documentation string
	Suggestion    string
	ErrorCode     string
}

// Kind discriminates the ValidationError taxonomy of spec.md §7.
type Kind string

const (
	KindSchemaMissingField    Kind = "SchemaError.MissingField"
	KindSchemaInvalidType     Kind = "SchemaError.InvalidType"
	KindSchemaInvalidStruct   Kind = "SchemaError.InvalidStructure"
	KindValueInvalid          Kind = "ValidationError.InvalidValue"
	KindConstraintViolation   Kind = "ValidationError.ConstraintViolation"
	KindDependencyError       Kind = "ValidationError.DependencyError"
	KindProviderInit          Kind = "ProviderError.Initialization"
	KindProviderCapability    Kind = "ProviderError.Capability"
	KindProviderConfiguration Kind = "ProviderError.Configuration"
)

// ValidationError is one provider/plugin-config error (spec.md §7).
type ValidationError struct {
	Kind    Kind
	Message string
	Context ErrorContext
}

func (e *ValidationError) Error() string {
	return errkit.Format(string(e.Kind), e.Message, e.Context.Location, e.Context.Documentation)
}

// Location implements the shared Location() accessor every component
// error kind exposes (spec.md §7); provider configs have no file/line,
// only the string location already attached to Context.
func (e *ValidationError) Location() (file string, line, col int, ok bool) {
	return e.Context.Location, 0, 0, e.Context.Location != ""
}

var structValidator = validator.New()

// ThinkConfig is the struct-tag-validated shape of a Think call's
// numeric attributes (spec.md §4.3: "temperature tag min=0,max=1,
// max_tokens tag min=1").
type ThinkConfig struct {
	Temperature float64 `validate:"gte=0,lte=1"`
	MaxTokens   uint32  `validate:"gte=1"`
}

// ValidateThinkConfig runs go-playground/validator struct-tag checks
// over a Think call's numeric attributes.
func ValidateThinkConfig(cfg ThinkConfig, location string) error {
	if err := structValidator.Struct(cfg); err != nil {
		return &ValidationError{
			Kind:    KindConstraintViolation,
			Message: err.Error(),
			Context: ErrorContext{Location: location, Severity: SeverityError, ErrorCode: "THINK_CONFIG"},
		}
	}
	return nil
}

// ValidatePluginConfig validates a plugin's literal configuration
// object against a declared JSON Schema (spec.md §4.3: "for plugin
// configs carrying a declared JSON Schema, with
// santhosh-tekuri/jsonschema/v5").
func ValidatePluginConfig(schemaJSON string, config any, location string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("plugin-config.json", strings.NewReader(schemaJSON)); err != nil {
		return &ValidationError{
			Kind:    KindSchemaInvalidStruct,
			Message: err.Error(),
			Context: ErrorContext{Location: location, Severity: SeverityCritical, ErrorCode: "SCHEMA_COMPILE"},
		}
	}
	schema, err := compiler.Compile("plugin-config.json")
	if err != nil {
		return &ValidationError{
			Kind:    KindSchemaInvalidStruct,
			Message: err.Error(),
			Context: ErrorContext{Location: location, Severity: SeverityCritical, ErrorCode: "SCHEMA_COMPILE"},
		}
	}
	if err := schema.Validate(config); err != nil {
		return &ValidationError{
			Kind:    KindValueInvalid,
			Message: err.Error(),
			Context: ErrorContext{Location: location, Severity: SeverityError, ErrorCode: "PLUGIN_CONFIG"},
		}
	}
	return nil
}
