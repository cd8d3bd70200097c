package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
)

// EnvPrefix prefixes per-parameter environment overrides, e.g. SWARM_NUM_AGENTS
const EnvPrefix = "SWARM_"

// SkipPromptsEnv disables prompting when set to "true" (CI and automation)
const SkipPromptsEnv = "SWARM_SKIP_PROMPTS"

// SkipPrompts reports whether prompting is disabled through the environment
func SkipPrompts() bool {
	return os.Getenv(SkipPromptsEnv) == "true"
}

// PromptForParameters prompts the user for every simulation parameter
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	return ResolveParameters(params, nil, !SkipPrompts())
}

// ResolveParameters builds the parameter map for a simulation. A value from
// preset wins, then a SWARM_<NAME> environment variable. Remaining parameters
// are prompted for when interactive, otherwise they take their default.
// Environment values become the prompt default.
func ResolveParameters(params []simulation.Parameter, preset map[string]interface{}, interactive bool) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))

	for _, param := range params {
		if v, ok := preset[param.Name]; ok {
			value, err := normalize(param, v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", param.Name, err)
			}
			result[param.Name] = value
			continue
		}

		if envValue := os.Getenv(EnvPrefix + strings.ToUpper(param.Name)); envValue != "" {
			value, err := ParseValue(param, envValue)
			if err != nil {
				return nil, fmt.Errorf("invalid %s%s: %w", EnvPrefix, strings.ToUpper(param.Name), err)
			}
			if !interactive {
				result[param.Name] = value
				continue
			}
			param.Default = value
		}

		if !interactive {
			if param.Default == nil {
				if param.Required {
					return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
				}
				continue
			}
			value, err := normalize(param, param.Default)
			if err != nil {
				return nil, fmt.Errorf("invalid default for %s: %w", param.Name, err)
			}
			result[param.Name] = value
			continue
		}

		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}

	return result, nil
}

// ParseValue parses raw according to the parameter type and checks its range
// and options
func ParseValue(param simulation.Parameter, raw string) (interface{}, error) {
	var (
		value interface{}
		err   error
	)

	switch param.Type {
	case simulation.ParamInteger:
		value, err = strconv.Atoi(strings.TrimSpace(raw))
	case simulation.ParamFloat:
		value, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case simulation.ParamString:
		value = raw
	case simulation.ParamBoolean:
		value, err = strconv.ParseBool(strings.TrimSpace(raw))
	case simulation.ParamDuration:
		value, err = time.ParseDuration(strings.TrimSpace(raw))
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", param.Type, raw)
	}

	if err := checkValue(param, value); err != nil {
		return nil, err
	}
	return value, nil
}

// normalize converts a value from YAML or a default into the parameter's Go type
func normalize(param simulation.Parameter, v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return ParseValue(param, val)
	case int:
		if param.Type == simulation.ParamFloat {
			v = float64(val)
		}
	case float64:
		if param.Type == simulation.ParamInteger {
			if val != float64(int(val)) {
				return nil, fmt.Errorf("expected integer, got %v", val)
			}
			v = int(val)
		}
	}

	if err := checkValue(param, v); err != nil {
		return nil, err
	}
	return v, nil
}

func checkValue(param simulation.Parameter, value interface{}) error {
	switch v := value.(type) {
	case int:
		if param.Min != nil && v < toInt(param.Min) {
			return fmt.Errorf("value must be at least %d", toInt(param.Min))
		}
		if param.Max != nil && v > toInt(param.Max) {
			return fmt.Errorf("value must be at most %d", toInt(param.Max))
		}
	case float64:
		if param.Min != nil && v < toFloat64(param.Min) {
			return fmt.Errorf("value must be at least %g", toFloat64(param.Min))
		}
		if param.Max != nil && v > toFloat64(param.Max) {
			return fmt.Errorf("value must be at most %g", toFloat64(param.Max))
		}
	case string:
		if len(param.Options) > 0 && !containsString(param.Options, v) {
			return fmt.Errorf("value must be one of %v", param.Options)
		}
	case time.Duration:
		if v < 0 {
			return fmt.Errorf("duration must not be negative")
		}
	}
	return nil
}

// promptForParameter asks for a single parameter on the terminal
func promptForParameter(param simulation.Parameter) (interface{}, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	switch param.Type {
	case simulation.ParamBoolean:
		return promptBoolean(param)
	case simulation.ParamString:
		if len(param.Options) > 0 {
			return promptSelect(param, defaultStr)
		}
	case simulation.ParamInteger, simulation.ParamFloat, simulation.ParamDuration:
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}

	message := param.Description
	if param.Type == simulation.ParamDuration {
		message += " (e.g., 5m, 1h30m, 30s)"
	}
	prompt := &survey.Input{
		Message: message,
		Default: defaultStr,
	}

	validators := []survey.Validator{func(val interface{}) error {
		str, _ := val.(string)
		if str == "" && !param.Required {
			return nil
		}
		_, err := ParseValue(param, str)
		return err
	}}
	if param.Required {
		validators = append([]survey.Validator{survey.Required}, validators...)
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return nil, err
	}
	if result == "" {
		return nil, nil
	}

	return ParseValue(param, result)
}

func promptSelect(param simulation.Parameter, defaultStr string) (string, error) {
	prompt := &survey.Select{
		Message: param.Description,
		Options: param.Options,
	}
	if containsString(param.Options, defaultStr) {
		prompt.Default = defaultStr
	}

	var result string
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func promptBoolean(param simulation.Parameter) (bool, error) {
	defaultBool := false
	if param.Default != nil {
		switch v := param.Default.(type) {
		case bool:
			defaultBool = v
		case string:
			defaultBool = v == "true" || v == "yes" || v == "1"
		}
	}

	prompt := &survey.Confirm{
		Message: param.Description,
		Default: defaultBool,
	}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
