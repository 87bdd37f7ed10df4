package capread

import "github.com/rawbytedev/capread/pkg/arena"

// Empty is a message with a null root: one segment of a single zero word.
var Empty = Unlimited([]*arena.Segment{{ID: 0, Raw: make([]byte, 8), End: 8}})
