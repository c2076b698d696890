package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hession/memochat/internal/conversation"
)

const (
	recallTimeLayout = "2006-01-02 15:04:05"
	queryTrimSet     = " \t\r\n¿?¡!.,;:"
)

// triggerSet case-insensitive patterns for the recall trigger phrases
type triggerSet []*regexp.Regexp

func compileTriggers(triggers []string) triggerSet {
	set := make(triggerSet, 0, len(triggers))
	for _, t := range triggers {
		if t != "" {
			set = append(set, regexp.MustCompile("(?i)"+regexp.QuoteMeta(t)))
		}
	}
	return set
}

// extract removes every trigger from text and trims surrounding punctuation.
// ok is false when text carries no trigger.
func (set triggerSet) extract(text string) (string, bool) {
	matched := false
	for _, re := range set {
		if re.MatchString(text) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	query := text
	for _, re := range set {
		query = re.ReplaceAllString(query, " ")
	}
	query = strings.Join(strings.Fields(query), " ")
	return strings.Trim(query, queryTrimSet), true
}

// ExtractQuery reports whether text carries a recall trigger and returns the
// text with every trigger removed and surrounding punctuation trimmed
func ExtractQuery(text string, triggers []string) (string, bool) {
	return compileTriggers(triggers).extract(text)
}

// Recall answers a memory recall request from the full history. ok is false
// when text has no trigger or the query is empty, which means a normal
// provider call.
func (a *Assembler) Recall(text string) (string, bool) {
	query, triggered := a.triggers.extract(text)
	if !triggered || query == "" {
		return "", false
	}

	var body string
	switch {
	case a.history.Len() == 0:
		body = a.prompts.RecallEmpty
	default:
		found := a.history.Search(query)
		if len(found) == 0 {
			body = fmt.Sprintf(a.prompts.RecallNotFound, query)
		} else {
			body = fmt.Sprintf(a.prompts.RecallFound, query) + "\n\n" + a.formatMatches(found)
		}
	}

	if phrase := a.pickPhrase(); phrase != "" {
		return phrase + "\n\n" + body, true
	}
	return body, true
}

func (a *Assembler) formatMatches(found []conversation.Message) string {
	lines := make([]string, 0, len(found))
	for _, m := range found {
		label := a.prompts.UserLabel
		if m.Sender == conversation.SenderAI {
			label = a.prompts.AssistantLabel
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Timestamp.Local().Format(recallTimeLayout), label, m.Content))
	}
	return strings.Join(lines, "\n\n")
}
