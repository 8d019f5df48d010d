package pipeline

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"
)

// envOp's fields are unexported, so gob cannot encode it field by field;
// these methods carry it across the re-exec boundary as NUL-separated text
// (neither environment names nor values can contain a NUL byte).
func (op envOp) GobEncode() ([]byte, error) {
	return []byte(fmt.Sprintf("%d\x00%s\x00%s", op.kind, op.name, op.value)), nil
}

func (op *envOp) GobDecode(b []byte) error {
	parts := strings.SplitN(string(b), "\x00", 3)
	if len(parts) != 3 {
		return fmt.Errorf("pipeline: malformed env op %q", b)
	}
	kind, err := strconv.Atoi(parts[0])
	*op = envOp{kind: envOpKind(kind), name: parts[1], value: parts[2]}
	return err
}

// childSpec is the gob-serializable description of a single Command,
// carried across a re-exec through envInvocation. It mirrors Command
// itself but strips anything that can't cross a process boundary (the
// registered Func is referenced by handle, not by value).
type childSpec struct {
	Kind       commandKind
	Name       string
	Nice       int
	DiscardErr bool
	EnvOps     []envOp

	Argv []string // Process

	FuncHandle string      // Function
	FuncState  interface{} // Function; concrete type must be gob.Register'd by the caller

	Children []childSpec // Sequence
}

// toChildSpec converts c, recursively, into its wire form.
func toChildSpec(c *Command) childSpec {
	spec := childSpec{
		Kind:       c.kind,
		Name:       c.Name,
		Nice:       c.Nice,
		DiscardErr: c.DiscardErr,
		EnvOps:     c.envOps,
	}
	switch c.kind {
	case kindProcess:
		spec.Argv = c.argv
	case kindFunction:
		spec.FuncHandle = c.fn.handle
		spec.FuncState = c.fnState
	case kindSequence:
		for _, child := range c.children {
			spec.Children = append(spec.Children, toChildSpec(child))
		}
	}
	return spec
}

// encodeChildSpec gob-encodes spec and base64-wraps it for transport
// through an environment variable.
func encodeChildSpec(spec childSpec) (string, error) {
	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(spec); err != nil {
		return "", fmt.Errorf("pipeline: failed to encode invocation: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeChildSpec(s string) (childSpec, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return childSpec{}, fmt.Errorf("pipeline: failed to decode invocation: %w", err)
	}
	var spec childSpec
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&spec); err != nil {
		return childSpec{}, fmt.Errorf("pipeline: failed to decode invocation: %w", err)
	}
	return spec, nil
}
