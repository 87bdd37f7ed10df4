package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	capread "github.com/rawbytedev/capread"
	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/wire"
)

func rootLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root FILE",
		Short: "Print the layout of the root struct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close(cmd)

			root, err := s.reader.GetRoot()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if root == nil {
				fmt.Fprintln(w, "null")
				return nil
			}
			l := root.Layout
			fmt.Fprintf(w, "segment %d data [%d, %d) pointers [%d, %d)\n",
				root.Segment().ID, l.DataSection, l.DataSection+l.Bytes.Data, l.PointersSection, l.End)
			fmt.Fprintf(w, "data %s\n", hex.EncodeToString(root.Data()))
			for i := 0; i < root.PointerCount(); i++ {
				p, err := root.Field(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "pointer %d %s\n", i, describe(p))
			}
			return nil
		},
	}
}

func treeCmd() *cobra.Command {
	var maxText int

	cmd := &cobra.Command{
		Use:   "tree FILE",
		Short: "Walk every pointer reachable from the root",
		Long: `Walk every pointer reachable from the root and print one line per object.

The walk stops at the first error, such as an exhausted budget or an
out-of-bounds pointer, and reports it after the objects printed so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close(cmd)

			segments := s.reader.Segments()
			if len(segments) == 0 {
				return arena.ErrOutOfBounds
			}
			p, err := s.reader.Pointer(arena.Root(segments))
			if err != nil {
				return err
			}
			t := &walker{r: s.reader, w: cmd.OutOrStdout(), maxText: maxText}
			return t.walk(p, 0)
		},
	}

	cmd.Flags().IntVar(&maxText, "max-text", 32, "Print byte lists up to this length")

	return cmd
}

func describe(p *arena.Pointer) string {
	if p == nil {
		return "null"
	}
	switch p.Kind {
	case wire.Struct:
		return fmt.Sprintf("struct(%d data, %d pointers) @%d:%d",
			wire.DataWords(p.Hi), wire.PointerWords(p.Hi), p.Object.Segment.ID, p.Object.Position)
	case wire.List:
		return fmt.Sprintf("list(%s x %d) @%d:%d",
			wire.ListClass(p.Hi), wire.ListCount(p.Hi), p.Object.Segment.ID, p.Object.Position)
	default:
		return fmt.Sprintf("capability(%d)", p.Hi)
	}
}

type walker struct {
	r       *capread.Reader
	w       io.Writer
	maxText int
}

func (t *walker) line(depth int, format string, args ...any) {
	fmt.Fprintf(t.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (t *walker) walk(p *arena.Pointer, depth int) error {
	t.line(depth, "%s", describe(p))
	if p == nil {
		return nil
	}
	switch {
	case p.Kind == wire.Struct:
		l, err := t.r.GenericStructLayout(p)
		if err != nil {
			return err
		}
		return t.pointers(p.Object.Segment, l.PointersSection, l.Bytes.Pointers, p.Level, depth+1)
	case p.Kind != wire.List:
		return nil
	}

	switch wire.ListClass(p.Hi) {
	case wire.Bit:
		l, err := t.r.BoolListLayout(p)
		if err != nil {
			return err
		}
		t.line(depth+1, "%d bits", l.Length)
	case wire.Byte:
		l, err := t.r.BlobLayout(p)
		if err != nil {
			return err
		}
		if l.Length <= t.maxText {
			t.line(depth+1, "%q", p.Object.Segment.Raw[l.Begin:l.Begin+l.Length])
		}
	default:
		l, err := t.r.GenericNonboolListLayout(p)
		if err != nil {
			return err
		}
		if l.Wire.Pointers == 0 {
			return nil
		}
		for i := 0; i < l.Length; i++ {
			elem := l.Begin + i*l.Stride()
			if err := t.pointers(p.Object.Segment, elem+l.Wire.Data, l.Wire.Pointers, p.Level, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// pointers walks the slots of an object reached at level, printing them
// indented by depth.
func (t *walker) pointers(seg *arena.Segment, begin, n, level, depth int) error {
	for off := 0; off < n; off += wire.WordSize {
		p, err := t.r.Follow(arena.Location{Segment: seg, Position: begin + off}, level)
		if err != nil {
			return err
		}
		if err := t.walk(p, depth); err != nil {
			return err
		}
	}
	return nil
}
