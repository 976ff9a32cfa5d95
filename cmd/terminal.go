// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/openbench/buccaneer/pkg/bbio"
	"github.com/spf13/cobra"
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Interactive terminal over the UART bridge",
	Long: `Switch the adapter into UART mode, enter the transparent bridge and run
an interactive terminal against whatever is wired to the UART pins.

Entering the bridge is ONE-WAY: the adapter stays a transparent pipe
until it is physically reset. Quitting the terminal closes the
connection but does not restore binary mode.

Typed lines are sent with CR+LF appended. Ctrl+C or Esc quits.

Supports both serial and WebSocket connections.`,
	RunE: runTerminal,
}

func init() {
	terminalCmd.Flags().IntVar(&uartBaud, "uart-baud", 9600, "UART baud rate (300..115200 per the adapter's table)")
	terminalCmd.Flags().IntVar(&uartDataBits, "data-bits", 8, "Data bits (8 or 9)")
	terminalCmd.Flags().StringVar(&uartParity, "parity", "N", "Parity (N, E or O)")
	terminalCmd.Flags().IntVar(&uartStopBits, "stop-bits", 1, "Stop bits (1 or 2)")
	terminalCmd.Flags().BoolVar(&uartIdleLow, "idle-low", false, "Idle the line low instead of high")
	terminalCmd.Flags().BoolVar(&uartHiZ, "hiz", false, "High-impedance pin output instead of 3.3V drive")
	terminalCmd.Flags().DurationVar(&uartTimeout, "timeout", 30*time.Second, "Handshake timeout")

	rootCmd.AddCommand(terminalCmd)
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type termRXMsg []byte
type termErrMsg struct{ err error }

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

// terminalModel is the Bubble Tea model for the bridge terminal
type terminalModel struct {
	uart     *bbio.UART
	connInfo string

	viewport viewport.Model
	input    textinput.Model
	output   strings.Builder

	ready    bool
	width    int
	height   int
	lastErr  error
	quitting bool
}

func initialTerminalModel(uart *bbio.UART, connInfo string) terminalModel {
	ti := textinput.New()
	ti.Placeholder = "type a line, Enter sends CR+LF"
	ti.Focus()
	ti.CharLimit = 512

	return terminalModel{
		uart:     uart,
		connInfo: connInfo,
		input:    ti,
	}
}

func (m terminalModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 4 // title, input, help
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.output.String())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m, sendBridgeLine(m.uart, line)
		}

	case termRXMsg:
		m.output.WriteString(sanitizeTerminalBytes(msg))
		if m.ready {
			m.viewport.SetContent(m.output.String())
			m.viewport.GotoBottom()
		}
		return m, nil

	case termErrMsg:
		m.lastErr = msg.err
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m terminalModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting terminal..."
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Bold(true)
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	title := titleStyle.Render(fmt.Sprintf(" UART Bridge - %s ", m.connInfo))
	help := helpStyle.Render("Enter: send line | Esc/Ctrl+C: quit (bridge stays until adapter reset)")
	if m.lastErr != nil {
		help = styleError.Render(fmt.Sprintf("write error: %v", m.lastErr))
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", title, m.viewport.View(), m.input.View(), help)
}

// sendBridgeLine transmits a typed line over the bridge.
func sendBridgeLine(uart *bbio.UART, line string) tea.Cmd {
	return func() tea.Msg {
		if err := uart.Write(context.Background(), []byte(line+"\r\n")); err != nil {
			return termErrMsg{err: err}
		}
		return nil
	}
}

// sanitizeTerminalBytes renders inbound bytes as displayable text,
// keeping newlines and replacing other control bytes.
func sanitizeTerminalBytes(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch {
		case c == '\n':
			b.WriteByte('\n')
		case c == '\r':
			// CR+LF collapses to the LF
		case c >= 32 && c < 127:
			b.WriteByte(c)
		default:
			b.WriteByte('.')
		}
	}
	return b.String()
}

//////////////////////////////////////////////////////////////
// Command
//////////////////////////////////////////////////////////////

func runTerminal(cmd *cobra.Command, args []string) error {
	opts, err := uartOptionsFromFlags()
	if err != nil {
		return err
	}

	ls, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer ls.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), uartTimeout)
	defer cancel()

	uart := bbio.NewUART(ls.sess)
	if err := uart.Start(ctx, opts); err != nil {
		return err
	}
	if err := uart.EnterBridge(ctx); err != nil {
		return err
	}

	m := initialTerminalModel(uart, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Drain bridge traffic into the TUI: each match-anything expectation
	// resolves with whatever the next feed delivers.
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()
	go func() {
		for {
			w := ls.sess.Matcher().Expect(nil)
			data, err := w.Wait(drainCtx)
			if err != nil {
				return
			}
			p.Send(termRXMsg(data))
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
