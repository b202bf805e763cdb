// Package lockscope classifies git operations by the exclusivity
// domain they require: the whole repository (global) or a single
// worktree. The classifier is pure — it inspects the subcommand and
// its arguments and nothing else.
package lockscope

import (
	"strings"

	"gitgate/pkg/protocol"
)

// Subcommand is a closed enumeration of git subcommands the classifier
// knows about. Anything outside the set maps to SubUnknown, which
// classifies as global — unknown operations must never be
// under-protected.
type Subcommand string

// Known subcommands.
const (
	SubMerge    Subcommand = "merge"
	SubRebase   Subcommand = "rebase"
	SubPull     Subcommand = "pull"
	SubFetch    Subcommand = "fetch"
	SubPush     Subcommand = "push"
	SubWorktree Subcommand = "worktree"
	SubCheckout Subcommand = "checkout"
	SubBranch   Subcommand = "branch"
	SubAdd      Subcommand = "add"
	SubCommit   Subcommand = "commit"
	SubStatus   Subcommand = "status"
	SubDiff     Subcommand = "diff"
	SubStash    Subcommand = "stash"
	SubReset    Subcommand = "reset"
	SubUnknown  Subcommand = "unknown"
)

// ParseSubcommand maps a raw subcommand string to the closed set.
func ParseSubcommand(s string) Subcommand {
	switch Subcommand(strings.ToLower(s)) {
	case SubMerge, SubRebase, SubPull, SubFetch, SubPush, SubWorktree,
		SubCheckout, SubBranch, SubAdd, SubCommit, SubStatus, SubDiff,
		SubStash, SubReset:
		return Subcommand(strings.ToLower(s))
	default:
		return SubUnknown
	}
}

// Classify returns the lock scope required by a git subcommand with
// the given arguments (the arguments after the subcommand itself).
//
// Global: anything that can alter shared refs, the object graph, or
// the worktree registry. Worktree: anything confined to one worktree's
// index and tree.
func Classify(subcommand string, args []string) protocol.LockScope {
	switch ParseSubcommand(subcommand) {
	case SubMerge, SubRebase, SubPull, SubFetch, SubPush, SubWorktree:
		return protocol.ScopeGlobal

	case SubCheckout:
		// Creating a branch mutates shared refs; switching does not.
		if hasFlag(args, "-b") || hasFlag(args, "--orphan") {
			return protocol.ScopeGlobal
		}
		return protocol.ScopeWorktree

	case SubBranch:
		// Delete/rename touch shared refs; list/create-from-HEAD do not
		// contend across worktrees in practice.
		if hasFlag(args, "-d") || hasFlag(args, "-D") ||
			hasFlag(args, "-m") || hasFlag(args, "-M") {
			return protocol.ScopeGlobal
		}
		return protocol.ScopeWorktree

	case SubAdd, SubCommit, SubStatus, SubDiff, SubStash, SubReset:
		return protocol.ScopeWorktree

	default:
		// Safe default: over-protect rather than under-protect.
		return protocol.ScopeGlobal
	}
}

// ClassifyArgs classifies a full git argument list, skipping any
// leading global flags (-C <dir>, -c <kv>, --git-dir=...) to find the
// subcommand. An empty or flag-only list classifies as global.
func ClassifyArgs(args []string) protocol.LockScope {
	sub, rest := SplitSubcommand(args)
	if sub == "" {
		return protocol.ScopeGlobal
	}
	return Classify(sub, rest)
}

// SplitSubcommand extracts the subcommand and its trailing arguments
// from a full git argument list, skipping leading global flags.
func SplitSubcommand(args []string) (subcommand string, rest []string) {
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "-C" || a == "-c":
			i += 2 // flag takes a value
		case strings.HasPrefix(a, "--git-dir") || strings.HasPrefix(a, "--work-tree"):
			if a == "--git-dir" || a == "--work-tree" {
				i += 2
			} else {
				i++ // --git-dir=path form
			}
		case strings.HasPrefix(a, "-"):
			i++
		default:
			return a, args[i+1:]
		}
	}
	return "", nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
