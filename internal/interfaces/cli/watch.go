package cli

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	configstore "scorehub.io/cli/internal/infrastructure/config"
	"scorehub.io/cli/internal/interfaces/di"
)

const watchPollInterval = 2 * time.Second

type watchModel struct {
	container *di.Container
	watcher   *configstore.Watcher
	report    string
	updatedAt time.Time
}

type tickMsg time.Time

type configChangedMsg struct{}

func runWatch(cmd *cobra.Command, c *di.Container) error {
	watcher, err := configstore.NewWatcher(c.Settings.ConfigPath(), c.Logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	m := watchModel{
		container: c,
		watcher:   watcher,
		report:    renderStatus(cmd.Context(), c),
		updatedAt: time.Now(),
	}
	p := tea.NewProgram(m, tea.WithOutput(cmd.OutOrStdout()))
	_, err = p.Run()
	return err
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForChange())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.report = renderStatus(context.Background(), m.container)
		m.updatedAt = time.Time(msg)
		return m, tick()
	case configChangedMsg:
		m.report = renderStatus(context.Background(), m.container)
		m.updatedAt = time.Now()
		return m, m.waitForChange()
	}
	return m, nil
}

func (m watchModel) View() string {
	return m.report +
		dimStyle.Render("Updated "+m.updatedAt.Format("15:04:05")+"  (q to quit)") + "\n"
}

func tick() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on the config watcher so an apply from another
// terminal refreshes the view immediately instead of on the next poll.
func (m watchModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.watcher.Changes(); !ok {
			return nil
		}
		return configChangedMsg{}
	}
}
