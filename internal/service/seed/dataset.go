package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/splax/userseed/internal/domain"
)

//go:embed users.toml
var defaultUsers string

var (
	errEmptyDataset  = errors.New("seed dataset has no users")
	errMissingField  = errors.New("seed user is missing a required field")
	errDuplicateUser = errors.New("seed dataset contains a duplicate email")
	errUnknownRole   = errors.New("seed user has an unknown role")
)

// SeedUser is one record of the seed dataset.
type SeedUser struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
}

// Dataset is the ordered set of users a reseed writes.
type Dataset struct {
	Users []SeedUser `toml:"users"`
}

// Len returns the number of users in the dataset.
func (d Dataset) Len() int {
	return len(d.Users)
}

// DefaultDataset returns the dataset compiled into the binary.
func DefaultDataset() (Dataset, error) {
	return ParseDataset(defaultUsers)
}

// LoadDataset reads a TOML dataset from path. An empty path selects
// DefaultDataset.
func LoadDataset(path string) (Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDataset()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read seed dataset: %w", err)
	}
	return ParseDataset(string(raw))
}

// ParseDataset decodes and validates a TOML dataset. Keys other than the
// SeedUser fields are rejected.
func ParseDataset(data string) (Dataset, error) {
	var ds Dataset
	meta, err := toml.Decode(data, &ds)
	if err != nil {
		return Dataset{}, fmt.Errorf("decode seed dataset: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Dataset{}, fmt.Errorf("decode seed dataset: unknown key %q", undecoded[0].String())
	}
	if err := ds.normalize(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func (d *Dataset) normalize() error {
	if len(d.Users) == 0 {
		return errEmptyDataset
	}
	seen := make(map[string]struct{}, len(d.Users))
	for i := range d.Users {
		u := &d.Users[i]
		u.Name = strings.TrimSpace(u.Name)
		u.Email = strings.TrimSpace(u.Email)
		u.Role = strings.ToLower(strings.TrimSpace(u.Role))
		if u.Name == "" || u.Email == "" || u.Password == "" {
			return fmt.Errorf("%w: users[%d]", errMissingField, i)
		}
		switch u.Role {
		case "":
			u.Role = domain.RoleUser
		case domain.RoleUser, domain.RoleAdmin:
		default:
			return fmt.Errorf("%w: users[%d] role %q", errUnknownRole, i, u.Role)
		}
		key := strings.ToLower(u.Email)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", errDuplicateUser, u.Email)
		}
		seen[key] = struct{}{}
	}
	return nil
}
