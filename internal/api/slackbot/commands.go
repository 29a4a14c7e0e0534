package slackbot

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	cmdBrief   = "brief"
	cmdVeille  = "veille"
	cmdAnalyse = "analyse"
	cmdReport  = "report"
	cmdHelp    = "help"
)

const usage = "Usage:\n" +
	"• `brief <path>` extract and validate a PDF brief\n" +
	"• `veille [sources-file]` collect the configured sources\n" +
	"• `analyse <ref|path> [type]` analyse a report (sentiment, trends, content, comprehensive)\n" +
	"• `report <brief_ref> [analysis_ref]` build the 16-slide deck\n" +
	"• `help` show this message"

var aliases = map[string]string{
	"brief":       cmdBrief,
	"veille":      cmdVeille,
	"watch":       cmdVeille,
	"analyse":     cmdAnalyse,
	"analyze":     cmdAnalyse,
	"analysis":    cmdAnalyse,
	"report":      cmdReport,
	"deliverable": cmdReport,
	"deck":        cmdReport,
	"help":        cmdHelp,
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

type command struct {
	Name string
	Args []string
}

func (c command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// parseCommand reads "<name> args..." with mentions removed. A slash
// command registered under a command name ("/brief") may pass it as slash.
func parseCommand(slash, text string) (command, error) {
	text = strings.TrimSpace(mentionPattern.ReplaceAllString(text, " "))
	fields := strings.Fields(text)
	if name, ok := aliases[strings.ToLower(strings.TrimPrefix(slash, "/"))]; ok {
		fields = append([]string{name}, fields...)
	}
	if len(fields) == 0 {
		return command{Name: cmdHelp}, nil
	}

	name, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	c := command{Name: name, Args: fields[1:]}

	switch name {
	case cmdBrief:
		if len(c.Args) != 1 {
			return command{}, fmt.Errorf("brief takes exactly one path")
		}
	case cmdVeille:
		if len(c.Args) > 1 {
			return command{}, fmt.Errorf("veille takes at most one sources file")
		}
	case cmdAnalyse:
		if len(c.Args) < 1 || len(c.Args) > 2 {
			return command{}, fmt.Errorf("analyse takes a ref or path and an optional type")
		}
	case cmdReport:
		if len(c.Args) < 1 || len(c.Args) > 2 {
			return command{}, fmt.Errorf("report takes a brief ref and an optional analysis ref")
		}
	}
	return c, nil
}
