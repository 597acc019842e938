// Package export renders the customers.yml artifact consumed by the
// downstream automation. Field names and casing are the downstream
// contract and must not change.
package export

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/panops/panorama-address-manager/internal/domain"
)

// Entry is one customer record in the artifact.
type Entry struct {
	CustomerName      string   `yaml:"CustomerName"`
	CustomerIPAddress string   `yaml:"CustomerIPAddress"`
	IPSubnetMask      int      `yaml:"IPSubnetMask"`
	Tags              []string `yaml:"Tags"`
	ObjectName        string   `yaml:"ObjectName"`
}

// Artifact is the full document: a single customers key holding the
// ordered record list.
type Artifact struct {
	Customers []Entry `yaml:"customers"`
}

// Build converts stored customers into the artifact, preserving order.
func Build(customers []*domain.Customer) *Artifact {
	a := &Artifact{Customers: make([]Entry, 0, len(customers))}
	for _, c := range customers {
		a.Customers = append(a.Customers, Entry{
			CustomerName:      c.Name,
			CustomerIPAddress: c.IPAddress,
			IPSubnetMask:      c.SubnetMask,
			Tags:              append([]string(nil), c.Tags...),
			ObjectName:        c.ObjectName,
		})
	}
	return a
}

// Render marshals the artifact to YAML.
func Render(customers []*domain.Customer) ([]byte, error) {
	data, err := yaml.Marshal(Build(customers))
	if err != nil {
		return nil, fmt.Errorf("rendering artifact: %w", err)
	}
	return data, nil
}

// Parse reads an artifact back, as used when redeploying a stored
// version.
func Parse(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact: %w", err)
	}
	return &a, nil
}
