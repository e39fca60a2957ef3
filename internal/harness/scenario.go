package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a simplification test scenario: a starting group, an
// optional chat conversation, one simplification pass and assertions on the
// resulting ledgers.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Chat is the chat id the group lives in. Default: DefaultChat, or the
	// fixture group's chat.
	Chat string `yaml:"chat,omitempty"`

	// Fixture is a directory of CUE group fixtures, relative to the
	// scenario file. Group selects one group from it. Mutually exclusive
	// with Users and Ledgers.
	Fixture string `yaml:"fixture,omitempty"`
	Group   string `yaml:"group,omitempty"`

	// Users of the group. When empty, every party named by Ledgers or
	// Messages becomes a user whose username is the lowercased id.
	Users []UserSpec `yaml:"users,omitempty"`

	// Ledgers are the starting balances.
	Ledgers []LedgerSpec `yaml:"ledgers,omitempty"`

	// Messages are chat commands sent through the bot before the pass.
	Messages []MessageStep `yaml:"messages,omitempty"`

	// Mode selects the pass run after the messages:
	// simplify (default), bidirectional, cycles or none.
	Mode string `yaml:"mode,omitempty"`

	// Assertions validate the replies, the report and the final ledgers.
	Assertions []Assertion `yaml:"assertions"`
}

// UserSpec declares one group member.
type UserSpec struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
}

// LedgerSpec declares one starting balance. ID defaults to the lowercased
// debtor followed by the lowercased creditor ("A" owes "B" → "ab").
type LedgerSpec struct {
	ID       string `yaml:"id,omitempty"`
	Debtor   string `yaml:"debtor"`
	Creditor string `yaml:"creditor"`
	Amount   int64  `yaml:"amount"`
}

// MessageStep sends one chat message.
type MessageStep struct {
	// Sender is the user id of the author.
	Sender string `yaml:"sender"`

	// Username overrides the sender's handle, e.g. to test /register.
	// Default: the sender's username in the group.
	Username string `yaml:"username,omitempty"`

	Text string `yaml:"text"`

	// Expect is the exact reply. ExpectContains is a substring of it.
	Expect         *string `yaml:"expect,omitempty"`
	ExpectContains string  `yaml:"expect_contains,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "ledger": Debtor owes Creditor exactly Amount (0 means no ledger)
	// - "ledger_count": exactly Count active ledgers remain
	// - "report": the pass reported Nettings and/or Cancellations
	// - "no_cycles": no directed cycle of any length remains
	// - "net_preserved": every party's net balance is unchanged by the pass
	Type string `yaml:"type"`

	Debtor   string `yaml:"debtor,omitempty"`
	Creditor string `yaml:"creditor,omitempty"`
	Amount   *int64 `yaml:"amount,omitempty"`

	Count *int `yaml:"count,omitempty"`

	Nettings      *int `yaml:"nettings,omitempty"`
	Cancellations *int `yaml:"cancellations,omitempty"`
}

// Assertion type constants.
const (
	AssertLedger       = "ledger"
	AssertLedgerCount  = "ledger_count"
	AssertReport       = "report"
	AssertNoCycles     = "no_cycles"
	AssertNetPreserved = "net_preserved"
)

// Pass modes.
const (
	ModeSimplify      = "simplify"
	ModeBidirectional = "bidirectional"
	ModeCycles        = "cycles"
	ModeNone          = "none"
)

// DefaultChat is the chat id used when a scenario names none.
const DefaultChat = "scenario"

// FixtureNotFoundError is returned when a scenario references a fixture
// directory that doesn't exist.
type FixtureNotFoundError struct {
	Scenario     string
	FixturePath  string
	ResolvedPath string
}

// Error implements the error interface.
func (e *FixtureNotFoundError) Error() string {
	return fmt.Sprintf(
		"scenario %q references fixture %q which does not exist (resolved to: %s)",
		e.Scenario,
		e.FixturePath,
		e.ResolvedPath,
	)
}

// LoadScenario reads and parses a scenario YAML file. A relative fixture
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the fixture path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) && basePath != "" {
		scenario.Fixture = filepath.Join(basePath, scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 && len(s.Messages) == 0 {
		return fmt.Errorf("assertions or messages are required")
	}

	switch s.Mode {
	case "", ModeSimplify, ModeBidirectional, ModeCycles, ModeNone:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.Fixture != "" {
		if len(s.Users) > 0 || len(s.Ledgers) > 0 {
			return fmt.Errorf("fixture cannot be combined with users or ledgers")
		}
		if s.Group == "" {
			return fmt.Errorf("group is required with fixture")
		}
		if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
			return &FixtureNotFoundError{
				Scenario:     s.Name,
				FixturePath:  filepath.Base(s.Fixture),
				ResolvedPath: s.Fixture,
			}
		}
	} else if s.Group != "" {
		return fmt.Errorf("group requires fixture")
	}

	for i, u := range s.Users {
		if u.ID == "" || u.Username == "" {
			return fmt.Errorf("users[%d]: id and username are required", i)
		}
	}
	for i, l := range s.Ledgers {
		if l.Debtor == "" || l.Creditor == "" {
			return fmt.Errorf("ledgers[%d]: debtor and creditor are required", i)
		}
	}
	for i, m := range s.Messages {
		if m.Sender == "" {
			return fmt.Errorf("messages[%d]: sender is required", i)
		}
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("messages[%d]: text is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLedger:
		if a.Debtor == "" || a.Creditor == "" {
			return fmt.Errorf("assertions[%d]: debtor and creditor are required for ledger", index)
		}
		if a.Amount == nil {
			return fmt.Errorf("assertions[%d]: amount is required for ledger", index)
		}
		if *a.Amount < 0 {
			return fmt.Errorf("assertions[%d]: amount must be non-negative for ledger", index)
		}
	case AssertLedgerCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for ledger_count", index)
		}
	case AssertReport:
		if a.Nettings == nil && a.Cancellations == nil {
			return fmt.Errorf("assertions[%d]: nettings or cancellations is required for report", index)
		}
	case AssertNoCycles, AssertNetPreserved:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
