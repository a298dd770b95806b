package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.io/infrasutra/tempinbox/internal/inbox"
)

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{m.renderHeader()}
	if m.view == detailView && m.detail != nil {
		sections = append(sections, detailBoxStyle.Width(max(m.width-2, 20)).Render(m.viewport.View()))
	} else {
		if m.searching || m.search.Value() != "" {
			sections = append(sections, m.search.View())
		}
		sections = append(sections, m.renderList())
	}
	sections = append(sections, m.renderStatus(), m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	address := mutedStyle.Render("no address")
	if m.state.Address != "" {
		address = addressStyle.Render(m.state.Address)
	}
	line := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("tempinbox"),
		providerTag.Render("["+m.state.ProviderLabel+"]"),
		address,
	)

	counts := inbox.Stats(m.messages, m.state.Read)
	stats := fmt.Sprintf("%d messages · %d unread", counts.Total, counts.Unread)
	if m.search.Value() != "" {
		stats += fmt.Sprintf(" · %d matching", len(m.visible))
	}
	auto := "auto-refresh off"
	if m.autoRefresh {
		auto = fmt.Sprintf("auto-refresh %s", m.interval)
	}
	if m.busy || m.fetching {
		auto = m.spinner.View() + auto
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, statsStyle.Render(stats+" · "+auto), "")
}

func (m Model) renderList() string {
	if len(m.visible) == 0 {
		switch {
		case m.state.Address == "":
			return emptyStyle.Render("Press g to generate a disposable address.")
		case m.search.Value() != "":
			return emptyStyle.Render("No messages match your search.")
		default:
			return emptyStyle.Render("Inbox is empty. Waiting for mail...")
		}
	}

	rows := max(m.height-7, 3) / 2
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(m.visible))

	var b strings.Builder
	for i := start; i < end; i++ {
		msg := m.visible[i]
		_, read := m.state.Read[msg.ID]

		mark := "  "
		subject := readSubject
		if !read {
			mark = unreadMarkStyle.Render("● ")
			subject = unreadSubject
		}
		title := msg.Subject
		if strings.TrimSpace(title) == "" {
			title = "(no subject)"
		}
		line := mark + subject.Render(truncate(title, max(m.width-30, 20))) +
			"  " + mutedStyle.Render(inbox.HumanTime(msg.Date))
		sub := "  " + fromStyle.Render(truncate(msg.From, max(m.width-8, 20)))

		style := rowStyle
		if i == m.cursor {
			style = selectedRowStyle
		}
		b.WriteString(style.Render(line + "\n" + sub))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderDetailBody() string {
	d := m.detail
	if d == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerKeyStyle.Render("From:"), d.From)
	fmt.Fprintf(&b, "%s %s\n", headerKeyStyle.Render("Date:"), inbox.HumanTime(d.Date))
	fmt.Fprintf(&b, "%s %s\n\n", headerKeyStyle.Render("Subject:"), d.Subject)
	b.WriteString(strings.Repeat("─", max(m.viewport.Width-2, 10)) + "\n\n")

	kind, body := inbox.PreferredBody(*d)
	switch kind {
	case inbox.BodyText:
		b.WriteString(strings.ReplaceAll(body, "\r\n", "\n"))
	case inbox.BodyHTML:
		b.WriteString(mutedStyle.Render("(HTML body)") + "\n\n")
		b.WriteString(strings.ReplaceAll(body, "\r\n", "\n"))
	default:
		b.WriteString(mutedStyle.Render("This message has no body."))
	}

	if len(d.Attachments) > 0 {
		b.WriteString("\n\n" + headerKeyStyle.Render("Attachments:") + "\n")
		for _, a := range d.Attachments {
			fmt.Fprintf(&b, "  • %s (%d bytes)\n", inbox.AttachmentName(a), a.Size)
		}
	}
	return b.String()
}

func (m Model) renderStatus() string {
	style := statusNormalStyle
	switch m.kind {
	case statusError:
		style = statusErrorStyle
	case statusNotice:
		style = statusNoticeStyle
	}
	return style.Width(max(m.width, 20)).Render(truncate(m.status, max(m.width-2, 18)))
}

func (m Model) renderHelp() string {
	bindings := m.keys.listHelp()
	if m.view == detailView {
		bindings = m.keys.detailHelp()
	}
	if m.searching {
		return helpStyle.Render("enter keep filter • esc clear")
	}
	return helpStyle.Render(joinHelp(bindings))
}

func joinHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
