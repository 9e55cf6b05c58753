package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

var (
	agendaDaysFlag int
	agendaTUI      bool
)

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Show fixed and managed events day by day",
	Long: `Show the calendar from today over the given number of days. With --tui
the agenda opens in an interactive pager, one day per page.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Calendar == nil {
			return fmt.Errorf("calendar not initialized")
		}
		if err := Calendar.Refresh(); err != nil {
			return err
		}
		days := agendaDaysFlag
		if days <= 0 {
			days = HorizonDays
		}
		from := dayKey(Clock.Now())
		events, err := Calendar.ListEvents(from, from.AddDate(0, 0, days))
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}

		if agendaTUI {
			p := tea.NewProgram(newAgendaModel(events), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running agenda: %w", err)
			}
			return nil
		}
		renderAgenda(cmd.OutOrStdout(), events)
		return nil
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage fixed calendar events",
}

var eventAddFlags struct {
	id    string
	title string
	start string
	end   string
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a fixed event that scheduling passes must avoid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Calendar == nil {
			return fmt.Errorf("calendar not initialized")
		}
		start, err := parseLocalTime(eventAddFlags.start)
		if err != nil {
			return fmt.Errorf("parsing --start: %w", err)
		}
		end, err := parseLocalTime(eventAddFlags.end)
		if err != nil {
			return fmt.Errorf("parsing --end: %w", err)
		}
		id, err := Calendar.AddFixedEvent(models.Event{
			ID:    eventAddFlags.id,
			Title: eventAddFlags.title,
			Start: start,
			End:   end,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added event %s (%s)\n", eventAddFlags.title, id)
		return nil
	},
}

// agendaModel pages through the agenda one day at a time.
type agendaModel struct {
	days   []time.Time
	byDay  map[time.Time][]models.Event
	index  int
	width  int
	height int
}

func newAgendaModel(events []models.Event) agendaModel {
	days, byDay := agendaDays(events)
	return agendaModel{days: days, byDay: byDay}
}

func (m agendaModel) Init() tea.Cmd {
	return nil
}

func (m agendaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "n", "tab":
			if m.index < len(m.days)-1 {
				m.index++
			}
			return m, nil
		case "left", "h", "p", "shift+tab":
			if m.index > 0 {
				m.index--
			}
			return m, nil
		case "home", "g":
			m.index = 0
			return m, nil
		case "end", "G":
			if len(m.days) > 0 {
				m.index = len(m.days) - 1
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m agendaModel) View() string {
	title := titleStyle.Render(" blockplan agenda ")
	help := helpStyle.Render("←/→: day | g/G: first/last | q: quit")

	if len(m.days) == 0 {
		return fmt.Sprintf("%s\n\n  No events.\n\n%s", title, help)
	}
	day := m.days[m.index]
	page := helpStyle.Render(fmt.Sprintf("day %d of %d", m.index+1, len(m.days)))
	return fmt.Sprintf("%s  %s\n\n%s\n%s", title, page, renderDay(day, m.byDay[day]), help)
}

func init() {
	agendaCmd.Flags().IntVar(&agendaDaysFlag, "days", 0, "Number of days to show (default the planning horizon)")
	agendaCmd.Flags().BoolVar(&agendaTUI, "tui", false, "Open the interactive agenda pager")

	f := eventAddCmd.Flags()
	f.StringVar(&eventAddFlags.id, "id", "", "Event ID (default a generated ID)")
	f.StringVar(&eventAddFlags.title, "title", "", "Event title (required)")
	f.StringVar(&eventAddFlags.start, "start", "", "Start time (required)")
	f.StringVar(&eventAddFlags.end, "end", "", "End time (required)")
	_ = eventAddCmd.MarkFlagRequired("title")
	_ = eventAddCmd.MarkFlagRequired("start")
	_ = eventAddCmd.MarkFlagRequired("end")

	eventCmd.AddCommand(eventAddCmd)
	rootCmd.AddCommand(agendaCmd)
	rootCmd.AddCommand(eventCmd)
}
