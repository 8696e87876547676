// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Issue identifiers.
const (
	MisdeclaredBoundaryID Id = iota + 1
	NotImportedDynamicallyID
	ConfigLoadFailedID
	WatchLimitReachedID
	HostCommandFailedID
	EngineUnreachableID
)

type (
	// Id identifies a guidance entry.
	Id int

	// MarkdownMsg is Markdown text rendered for the user.
	MarkdownMsg string

	// Issue is a guidance entry shown when hotswap runs into a known problem.
	Issue struct {
		id    Id
		slug  string
		mdMsg MarkdownMsg
	}
)

var (
	render = glamour.Render

	misdeclaredBoundaryIssue = &Issue{
		id:   MisdeclaredBoundaryID,
		slug: "misdeclared-boundary",
		mdMsg: `
# A boundary is imported statically

A file matched your boundaries, so hotswap expected to swap it in place.
Its importer loads it with a static ` + "`import`" + ` statement, so the
importer keeps a binding to the old module and the whole process has to restart.

## Things you can try
- Load the boundary with a dynamic import:
~~~js
const { default: UsersController } = await import('./controllers/users.js')
~~~
- Or remove the file from ` + "`boundaries`" + ` in hotswap.cue
- Set ` + "`throw_when_boundaries_are_not_dynamically_imported: true`" + ` to fail fast`,
	}

	notImportedDynamicallyIssue = &Issue{
		id:   NotImportedDynamicallyID,
		slug: "not-imported-dynamically",
		mdMsg: `
# Module loading aborted

` + "`throw_when_boundaries_are_not_dynamically_imported`" + ` is enabled and a
boundary was reached through a static import.

## Things you can try
- Replace the static import with ` + "`await import(...)`" + `
- Inspect the imports of the parent file:
~~~
$ hotswap imports path/to/parent.js
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedID,
		slug: "config",
		mdMsg: `
# Failed to load hotswap.cue

## Things you can try
- Print the effective configuration:
~~~
$ hotswap config show
~~~
- Write a fresh file with the defaults:
~~~
$ hotswap config init
~~~

## Example
~~~cue
root: "bin/server.js"
boundaries: ["app/controllers/**/*.js"]
restart: [".env"]
~~~`,
	}

	watchLimitReachedIssue = &Issue{
		id:   WatchLimitReachedID,
		slug: "watch-limit",
		mdMsg: `
# The file watcher ran out of resources

The operating system refused to watch more directories or files.

## Things you can try
- Add large generated directories to ` + "`ignore`" + `
- On Linux raise the inotify limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~`,
	}

	hostCommandFailedIssue = &Issue{
		id:   HostCommandFailedID,
		slug: "host-command",
		mdMsg: `
# The host command could not start

## Things you can try
- Check the command after ` + "`--`" + ` runs on its own
- Make sure the binary is on your PATH
~~~
$ hotswap serve -- node --import=hotswap/register bin/server.js
~~~`,
	}

	engineUnreachableIssue = &Issue{
		id:   EngineUnreachableID,
		slug: "engine-unreachable",
		mdMsg: `
# Cannot reach the hotswap engine

## Things you can try
- Start the engine with ` + "`hotswap serve`" + `
- Use the address printed at startup, or the ` + "`HOTSWAP_ADDR`" + ` variable of the host:
~~~
$ hotswap dump --addr ws://127.0.0.1:4567/ws
~~~`,
	}

	issues = map[Id]*Issue{
		misdeclaredBoundaryIssue.Id():    misdeclaredBoundaryIssue,
		notImportedDynamicallyIssue.Id(): notImportedDynamicallyIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		watchLimitReachedIssue.Id():      watchLimitReachedIssue,
		hostCommandFailedIssue.Id():      hostCommandFailedIssue,
		engineUnreachableIssue.Id():      engineUnreachableIssue,
	}
)

// Id returns the identifier of the issue.
func (i *Issue) Id() Id { return i.id }

// Slug returns the name used on the command line.
func (i *Issue) Slug() string { return i.slug }

// Title returns the first heading of the message.
func (i *Issue) Title() string {
	for line := range strings.Lines(string(i.mdMsg)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return title
		}
	}
	return i.slug
}

// MarkdownMsg returns the raw Markdown text.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// Render renders the message for a terminal using the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Lookup returns the issue with the given slug.
func Lookup(slug string) (*Issue, bool) {
	for _, i := range issues {
		if i.slug == slug {
			return i, true
		}
	}
	return nil, false
}
