package sim

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// dumpTables writes the distance table of every node, in ascending order of
// node ID, as seen at the current simulation time.
func (n *Network) dumpTables(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, node := range n.nodes {
		state := "alive"
		if !node.Alive() {
			state = "killed"
		}
		role := "node"
		if node.IsBeacon() {
			role = "beacon"
		}
		if _, err := fmt.Fprintf(tw, "Node: %d (%s, %s); Time: %.3fs\n", node.ID(), role, state, n.clock.Seconds()); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(tw, "Beacon\tPosition\tHops"); err != nil {
			return err
		}
		for _, entry := range node.DistanceTable() {
			if _, err := fmt.Fprintf(tw, "%d\t%s\t%d\n", entry.Beacon, entry.Position, entry.Hops); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}
