package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ballast-sh/ballast/internal/confmap"
)

// Prompter solicits a value for a required meta key that could not be
// resolved from supplied values or defaults. The name is the
// slash-separated key path.
type Prompter func(name string) (string, error)

// TerminalPrompter reads the value from stdin when it is a terminal
// and fails otherwise, making a missing required key fatal in
// non-interactive runs.
func TerminalPrompter(name string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("missing required meta %q and stdin is not a terminal", name)
	}

	fmt.Fprintf(os.Stderr, "Missing meta(%s):", name)
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read value for %s: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

// Meta computes the environment's contribution to a kard's meta:
// default_meta filled with the caller's extra values (extra wins),
// plus every required_meta key resolved. Prompted values are written
// back into extra so an interactively solicited value persists with
// the kard and a later reload asks nothing; values resolved from
// defaults stay out of extra, keeping default precedence intact. The
// result carries the environment's resolved feature list under
// "features".
//
// Resolution is idempotent: the same inputs produce the same output.
func (e *Environment) Meta(extra confmap.Tree, prompt Prompter) (confmap.Tree, error) {
	if prompt == nil {
		prompt = TerminalPrompter
	}

	ret := confmap.Copy(e.DefaultMeta())
	ret, w := confmap.MergeWarn(extra, ret)
	e.Warnings = append(e.Warnings, w...)

	required, prompted, err := resolveRequired(e.Tree["required_meta"], ret, extra, "", prompt)
	if err != nil {
		return nil, err
	}
	ret = confmap.Merge(required, ret)
	confmap.Merge(prompted, extra)

	features := make([]any, len(e.Features))
	for i, f := range e.Features {
		features[i] = f
	}
	ret["features"] = features

	return ret, nil
}

// ResolveRequired resolves a required_meta style declaration against
// the given defaults and supplied data. Prompted values are written
// back into data. Drivers use it for their own required keys.
func ResolveRequired(definition any, defaults, data confmap.Tree, prompt Prompter) (confmap.Tree, error) {
	if prompt == nil {
		prompt = TerminalPrompter
	}
	values, prompted, err := resolveRequired(definition, defaults, data, "", prompt)
	if err != nil {
		return nil, err
	}
	confmap.Merge(prompted, data)
	return values, nil
}

// resolveRequired walks a required_meta declaration: a flat key name,
// a list of declarations, or a singleton mapping denoting a nested
// path. Each leaf resolves from supplied data, then defaults, then
// the prompt. The second tree holds only the prompted values.
func resolveRequired(definition any, defaults, data confmap.Tree, path string, prompt Prompter) (confmap.Tree, confmap.Tree, error) {
	switch def := definition.(type) {
	case nil:
		return make(confmap.Tree), make(confmap.Tree), nil

	case string:
		if v, ok := data[def]; ok {
			return confmap.Tree{def: v}, make(confmap.Tree), nil
		}
		if v, ok := defaults[def]; ok {
			return confmap.Tree{def: v}, make(confmap.Tree), nil
		}
		value, err := prompt(path + def)
		if err != nil {
			return nil, nil, err
		}
		return confmap.Tree{def: value}, confmap.Tree{def: value}, nil

	case []any:
		values := make(confmap.Tree)
		prompted := make(confmap.Tree)
		for _, element := range def {
			sub, subPrompted, err := resolveRequired(element, defaults, data, path, prompt)
			if err != nil {
				return nil, nil, err
			}
			values = confmap.Merge(sub, values)
			prompted = confmap.Merge(subPrompted, prompted)
		}
		return values, prompted, nil

	case confmap.Tree:
		values := make(confmap.Tree)
		prompted := make(confmap.Tree)
		for key, nested := range def {
			subDefaults, _ := defaults[key].(confmap.Tree)
			subData, _ := data[key].(confmap.Tree)
			if subDefaults == nil {
				subDefaults = make(confmap.Tree)
			}
			if subData == nil {
				subData = make(confmap.Tree)
			}

			sub, subPrompted, err := resolveRequired(nested, subDefaults, subData, path+key+"/", prompt)
			if err != nil {
				return nil, nil, err
			}
			values[key] = sub
			if len(subPrompted) > 0 {
				prompted[key] = subPrompted
			}
		}
		return values, prompted, nil

	default:
		return nil, nil, fmt.Errorf("unsupported required_meta declaration %T at %q", definition, path)
	}
}
