package protocol

// MaxDocumentDepth limits the nesting depth of inbound documents.
// Tracker requests are at most four levels deep (announce → offers → offer → sdp);
// anything far beyond that is hostile input.
const MaxDocumentDepth = 64

// DefaultMaxPayloadLength is the largest frame the transport hands to Decode
// unless configured otherwise.
const DefaultMaxPayloadLength = 64 * 1024

// depthContext tracks the current nesting depth while walking a document.
type depthContext struct {
	current int
	max     int
}

// newDepthContext creates a new depth context with the given maximum.
func newDepthContext(max int) *depthContext {
	return &depthContext{current: 0, max: max}
}

// enter increments the depth and returns an error if the limit would be exceeded.
// The depth is only incremented on success.
func (dc *depthContext) enter() error {
	if dc.current >= dc.max {
		return ErrMaxDepthExceeded
	}
	dc.current++
	return nil
}

// leave decrements the depth.
func (dc *depthContext) leave() {
	dc.current--
}

// checkDepth walks v and fails once a container sits deeper than the limit.
func checkDepth(v any, dc *depthContext) error {
	switch t := v.(type) {
	case map[string]any:
		if err := dc.enter(); err != nil {
			return err
		}
		defer dc.leave()
		for _, child := range t {
			if err := checkDepth(child, dc); err != nil {
				return err
			}
		}
	case []any:
		if err := dc.enter(); err != nil {
			return err
		}
		defer dc.leave()
		for _, child := range t {
			if err := checkDepth(child, dc); err != nil {
				return err
			}
		}
	}
	return nil
}
