package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"netpulse/internal/domain"
	"netpulse/internal/loader"
)

// YAMLCodec exports the hierarchy in seed file format, so an export can be
// loaded back with the seed loader
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of the output
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// Export writes tree as seed YAML. Node ids and statuses are not included.
func (c *YAMLCodec) Export(tree *domain.TreeNode, w io.Writer) error {
	if tree == nil {
		return fmt.Errorf("export yaml: %w: no network", domain.ErrNodeNotFound)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(toSeed(tree)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func toSeed(tree *domain.TreeNode) *loader.SeedYAML {
	seed := &loader.SeedYAML{Network: tree.Name}
	for _, b := range tree.Children {
		building := loader.BuildingYAML{Name: b.Name}
		for _, r := range b.Children {
			router := loader.RouterYAML{Attributes: attributes(r)}
			for _, s := range r.Children {
				sw := loader.SwitchYAML{Attributes: attributes(s)}
				for _, d := range s.Children {
					sw.Devices = append(sw.Devices, attributes(d))
				}
				router.Switches = append(router.Switches, sw)
			}
			building.Routers = append(building.Routers, router)
		}
		seed.Buildings = append(seed.Buildings, building)
	}
	return seed
}

func attributes(n *domain.TreeNode) domain.Attributes {
	a := domain.Attributes{
		ExternalID: n.ExternalID,
		Address:    n.Address,
		Port:       n.Port,
	}
	if n.Name != n.ExternalID {
		a.Name = n.Name
	}
	return a
}
