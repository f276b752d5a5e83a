package proxy

import (
	"encoding/json"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// fileInput is the common shape of tool inputs that name files directly.
type fileInput struct {
	FilePath string `json:"file_path"`
	Path     string `json:"path"`
	Command  string `json:"command"`
	Edits    []struct {
		FilePath string `json:"file_path"`
	} `json:"edits"`
}

// ExtractPaths derives the candidate file paths a tool call would touch.
//
// Extraction is tool-specific: editor tools carry a file_path field and
// multi-edit tools an edits list; listing and search tools carry a path;
// shell tools get best-effort tokenization of the command string. An empty
// result means there is nothing to adjudicate and the request should be
// forwarded untouched.
func ExtractPaths(toolName string, input json.RawMessage) []string {
	if len(input) == 0 {
		return nil
	}
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil
	}

	var paths []string
	switch toolName {
	case "Read", "Write", "Edit", "MultiEdit", "NotebookEdit",
		"read", "read_file", "write", "write_file", "edit", "edit_file",
		"multiedit", "notebookedit":
		if in.FilePath != "" {
			paths = append(paths, in.FilePath)
		}
		for _, e := range in.Edits {
			if e.FilePath != "" {
				paths = append(paths, e.FilePath)
			}
		}
	case "Glob", "Grep", "glob", "grep":
		if in.Path != "" {
			paths = append(paths, in.Path)
		}
	case "Bash", "bash", "shell":
		if in.Command != "" {
			paths = append(paths, pathsFromShellCommand(in.Command)...)
		}
	}
	return paths
}

// pathsFromShellCommand tokenizes a shell command and keeps the tokens
// that look like file paths. The parser understands quoting, pipelines,
// and redirections, so `cat "~/.aws/credentials" > /tmp/out` yields both
// paths; an unparseable command yields nothing and falls through to the
// host's own approval flow.
func pathsFromShellCommand(command string) []string {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	var paths []string
	seen := make(map[string]struct{})
	add := func(token string) {
		if !looksLikePath(token) {
			return
		}
		if _, dup := seen[token]; dup {
			return
		}
		seen[token] = struct{}{}
		paths = append(paths, token)
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			// Every word is a candidate, the command word included:
			// running /x/credentials/run.sh touches it just as surely
			// as reading it does.
			for _, arg := range n.Args {
				add(wordToString(arg))
			}
		case *syntax.Assign:
			// SECRET=/home/u/.ssh/id_rsa names a path even though no
			// command consumes it yet.
			if n.Value != nil {
				add(wordToString(n.Value))
			}
		case *syntax.Redirect:
			if n.Word != nil {
				add(wordToString(n.Word))
			}
		}
		return true
	})
	return paths
}

// looksLikePath applies the token heuristic: skip flag-like tokens, keep
// tokens containing a separator or starting with a tilde.
func looksLikePath(token string) bool {
	if token == "" || strings.HasPrefix(token, "-") {
		return false
	}
	return strings.Contains(token, "/") || strings.HasPrefix(token, "~")
}

// wordToString flattens a shell word to its literal text. Dynamic parts
// keep a placeholder so a token like "$HOME/x" is visibly dynamic rather
// than silently truncated to "/x".
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}
