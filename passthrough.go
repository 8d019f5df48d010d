package pipeline

import (
	"io"
	"os"
)

// passthroughFunc is the body behind newPassthrough: it copies stdin to
// stdout verbatim, standing in for a sink Pipeline with no commands of its
// own. Grounded on the original library's own passthrough(), which exists
// for exactly the same reason.
var passthroughFunc = RegisterFunc("passthrough", func(state interface{}) error {
	_, err := io.Copy(os.Stdout, os.Stdin)
	if err == io.EOF {
		return nil
	}
	return err
}, nil)
