package model

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Addresses is an ordered, deduplicated set of TCP socket addresses. It
// deserializes from either a single address or a list of addresses in the
// wire format, and always serializes as a sorted, deduplicated list.
type Addresses []net.TCPAddr

// NewAddresses builds a normalized Addresses value from raw addresses.
func NewAddresses(addrs ...net.TCPAddr) Addresses {
	a := Addresses(append([]net.TCPAddr(nil), addrs...))
	a.normalize()
	return a
}

func (a *Addresses) normalize() {
	sort.Slice(*a, func(i, j int) bool {
		return addrKey((*a)[i]) < addrKey((*a)[j])
	})
	out := (*a)[:0]
	var prev string
	for i, addr := range *a {
		key := addrKey(addr)
		if i == 0 || key != prev {
			out = append(out, addr)
		}
		prev = key
	}
	*a = out
}

func addrKey(a net.TCPAddr) string {
	return a.IP.String() + "/" + strconv.Itoa(a.Port) + "/" + a.Zone
}

// Add merges other into a, returning the normalized union. Mirrors the
// associative-union semantics required for merging service bindings.
func (a Addresses) Add(other Addresses) Addresses {
	merged := append(append(Addresses(nil), a...), other...)
	merged.normalize()
	return merged
}

// Empty reports whether the set has no addresses.
func (a Addresses) Empty() bool { return len(a) == 0 }

func (a Addresses) String() string {
	parts := make([]string, len(a))
	for i, addr := range a {
		parts[i] = addr.String()
	}
	return strings.Join(parts, ",")
}

// UnmarshalJSON accepts either a single address string or an array of
// address strings ("one or many" wire shape).
func (a *Addresses) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = nil
		return nil
	}

	var list []string
	if trimmed != "" && trimmed[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("addresses: %w", err)
		}
	} else {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("addresses: %w", err)
		}
		list = []string{single}
	}

	parsed, err := addressesFromStrings(list)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON always emits a sorted, deduplicated array of address strings.
func (a Addresses) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.strings())
}

func (a Addresses) strings() []string {
	cp := append(Addresses(nil), a...)
	cp.normalize()
	strs := make([]string, len(cp))
	for i, addr := range cp {
		strs[i] = addr.String()
	}
	return strs
}

func addressesFromStrings(list []string) (Addresses, error) {
	parsed := make(Addresses, 0, len(list))
	for _, s := range list {
		tcp, err := net.ResolveTCPAddr("tcp", s)
		if err != nil {
			return nil, fmt.Errorf("addresses: invalid socket address %q: %w", s, err)
		}
		parsed = append(parsed, *tcp)
	}
	parsed.normalize()
	return parsed, nil
}

// MarshalYAML emits the same sorted, deduplicated list of address strings
// as MarshalJSON, so
// YAML config files use the same address syntax as the wire API.
func (a Addresses) MarshalYAML() (interface{}, error) {
	return a.strings(), nil
}

// UnmarshalYAML accepts either a single address string or a sequence of
// address strings.
func (a *Addresses) UnmarshalYAML(node *yaml.Node) error {
	var list []string
	if node.Kind == yaml.SequenceNode {
		if err := node.Decode(&list); err != nil {
			return err
		}
	} else {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		list = []string{single}
	}
	parsed, err := addressesFromStrings(list)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalTOML implements go-toml/v2's Unmarshaler interface: a single
// address string or an array of address strings.
func (a *Addresses) UnmarshalTOML(value interface{}) error {
	var list []string
	switch v := value.(type) {
	case string:
		list = []string{v}
	case []interface{}:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("addresses: expected string element, got %T", e)
			}
			list = append(list, s)
		}
	default:
		return fmt.Errorf("addresses: expected string or array of strings, got %T", value)
	}
	parsed, err := addressesFromStrings(list)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
