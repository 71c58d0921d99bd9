package enums

import "fmt"

// ActionType identifies the kind of offline mutation recorded in the sync queue.
// Each type maps to exactly one remote endpoint/verb pair.
type ActionType string

const (
	ActionCreateProduct     ActionType = "create_product"
	ActionUpdateProduct     ActionType = "update_product"
	ActionCreateTransaction ActionType = "create_transaction"
)

var validActionTypes = []ActionType{
	ActionCreateProduct,
	ActionUpdateProduct,
	ActionCreateTransaction,
}

// String implements fmt.Stringer.
func (a ActionType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActionType.
func (a ActionType) IsValid() bool {
	for _, candidate := range validActionTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActionType converts raw input into an ActionType.
func ParseActionType(value string) (ActionType, error) {
	for _, candidate := range validActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action type %q", value)
}
