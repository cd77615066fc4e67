// Package strategy defines the validated records exchanged between the
// pipeline and its analysis providers.
package strategy

import "fmt"

// Usage is the token accounting reported by one provider call.
type Usage struct {
	Input  int `json:"input" yaml:"input"`
	Output int `json:"output" yaml:"output"`
	Total  int `json:"total" yaml:"total"`
}

// Add returns the sum of u and o. A zero Total is derived from Input+Output.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		Input:  u.Input + o.Input,
		Output: u.Output + o.Output,
		Total:  u.total() + o.total(),
	}
}

func (u Usage) total() int {
	if u.Total == 0 {
		return u.Input + u.Output
	}
	return u.Total
}

// Validator is implemented by payloads that can check their own required
// fields and enum values.
type Validator interface {
	Validate() error
}

// ProviderResult is the envelope every provider returns. It is not modified
// after it leaves the provider.
type ProviderResult[T any] struct {
	Data       T       `json:"data" yaml:"data"`
	Cost       float64 `json:"cost" yaml:"cost"`
	Usage      Usage   `json:"usage" yaml:"usage"`
	ProviderID string  `json:"providerId" yaml:"provider_id"`
}

// Validate checks the envelope and, when the payload implements Validator,
// the payload itself.
func (r ProviderResult[T]) Validate() error {
	if r.Cost < 0 {
		return fmt.Errorf("strategy: negative cost %g from %q", r.Cost, r.ProviderID)
	}
	if v, ok := any(r.Data).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("strategy: invalid payload from %q: %w", r.ProviderID, err)
		}
	}
	return nil
}
