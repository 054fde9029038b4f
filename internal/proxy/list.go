package proxy

import (
	"bufio"
	"fmt"
	"os"
	"slices"
)

// ReadList loads candidates from a file; anything that is not an address:port is ignored.
func ReadList(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading proxy list: %w", err)
	}
	return ExtractEndpoints(string(data)), nil
}

// WriteList writes one endpoint per line, sorted so repeated runs diff cleanly.
func WriteList(path string, set *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating proxy list: %w", err)
	}
	defer f.Close()
	list := set.All()
	slices.Sort(list)
	w := bufio.NewWriter(f)
	for _, e := range list {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return w.Flush()
}
