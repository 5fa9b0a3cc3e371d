package policy

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed returns the built-in rule set used when no policy file is
// configured: block prompts carrying the word "secret".
func Seed() []Rule {
	return []Rule{
		{Pattern: "secret", Action: ActionBlock},
	}
}

// LoadFile reads an ordered rule list from a JSON file. The file holds
// a plain array of rule objects; order in the file is evaluation order.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("policy file %s: %w", path, ErrNoRules)
	}

	return rules, nil
}
