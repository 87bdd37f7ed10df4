package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	capread "github.com/rawbytedev/capread"
	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/builder"
	"github.com/rawbytedev/capread/pkg/metrics"
	"github.com/rawbytedev/capread/pkg/transport"
)

func copyCmd() *cobra.Command {
	var (
		output   string
		frame    bool
		pack     bool
		compress bool
		segSize  int
		textOut  bool
	)

	cmd := &cobra.Command{
		Use:   "copy FILE",
		Short: "Deep-copy the message into a fresh, canonical stream",
		Long: `Deep-copy every object reachable from the root into a fresh message.

The copy drops unreachable bytes and rewrites far pointers. The source is
read under the configured budget, so a cyclic or oversized message fails
instead of producing output.

Examples:
  capread copy msg.bin -o clean.bin
  capread copy --base64 msg.txt --frame --zstd -o clean.frame`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, args[0], metrics.WithSubsystem("copy"))
			if err != nil {
				return err
			}
			defer s.close(cmd)

			stream, err := copyMessage(s.reader, segSize)
			if err != nil {
				return err
			}
			if frame {
				var flags byte
				if pack {
					flags |= transport.FlagPacked
				}
				if compress {
					flags |= transport.FlagZstd
				}
				env := &transport.Envelope{}
				defer env.Close()
				if stream, err = env.Encode(stream, flags); err != nil {
					return err
				}
			} else if pack {
				stream = transport.Pack(stream)
			}

			if textOut {
				stream = []byte(transport.EncodeBase64(stream) + "\n")
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(stream)
				return err
			}
			if err := os.WriteFile(output, stream, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", output)
			}
			logrus.Infof("Wrote %d bytes to %s", len(stream), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&frame, "frame", false, "Wrap the output in a checksummed envelope")
	cmd.Flags().BoolVar(&pack, "pack", false, "Pack the output stream")
	cmd.Flags().BoolVar(&compress, "zstd", false, "Compress the envelope payload; requires --frame")
	cmd.Flags().IntVar(&segSize, "segment-size", 1024, "Initial segment size of the copy")
	cmd.Flags().BoolVar(&textOut, "text", false, "Write the output as base64 text")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if compress && !frame {
			return errors.New("--zstd requires --frame")
		}
		return nil
	}

	return cmd
}

// copyMessage deep-copies the root of r into a new message and returns its
// framed stream.
func copyMessage(r *capread.Reader, segSize int) ([]byte, error) {
	segments := r.Segments()
	if len(segments) == 0 {
		return nil, errors.Wrap(arena.ErrOutOfBounds, "message has no root word")
	}
	b := builder.Fresh(segSize)
	root, err := b.Root()
	if err != nil {
		return nil, err
	}
	if err := r.PointerCopy(arena.Root(segments), b, root); err != nil {
		return nil, errors.Wrap(err, "copying message")
	}
	logrus.Debugf("Copied message into %d segments", len(b.Segments()))
	return capread.Serialize(b.Segments()), nil
}
