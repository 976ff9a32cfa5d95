// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Openbench

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/openbench/buccaneer/pkg/bbio"
	"github.com/openbench/buccaneer/pkg/tape"
)

// Console styles shared by the live commands
var (
	styleTX    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleRX    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleEvent = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// liveSession bundles an open connection, the protocol session on top of
// it, the background read loop and an optional capture tape.
type liveSession struct {
	conn Connection
	sess *bbio.Session

	tapeWriter *tape.Writer
	tapeFile   *os.File

	done chan struct{}
}

// openSession opens the transport selected by the global flags, attaches
// a protocol session and starts the read loop that feeds inbound bytes
// into the session's stream matcher.
func openSession() (*liveSession, string, error) {
	conn, connInfo, err := openConnection()
	if err != nil {
		return nil, "", err
	}

	ls := &liveSession{conn: conn, done: make(chan struct{})}

	var w io.Writer = conn
	if captureFile != "" {
		f, err := os.Create(captureFile)
		if err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("failed to create capture file: %v", err)
		}
		ls.tapeFile = f
		ls.tapeWriter = tape.NewWriter(f)
		w = ls.tapeWriter.TXWriter(conn)
	}

	ls.sess = bbio.NewSession(w)
	go ls.readLoop()

	return ls, connInfo, nil
}

// readLoop pumps transport bytes into the session until the connection
// dies or the session is closed.
func (l *liveSession) readLoop() {
	buf := make([]byte, 128)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		n, err := l.conn.Read(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				return
			}
			// Brief pause before retry on transient errors (e.g. serial)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if n > 0 {
			if l.tapeWriter != nil {
				l.tapeWriter.Record(tape.DirRX, buf[:n])
			}
			l.sess.Feed(buf[:n])
		}
	}
}

// Close tears the session down and flushes the capture tape.
func (l *liveSession) Close() {
	close(l.done)
	l.conn.Close()
	if l.tapeFile != nil {
		l.tapeFile.Close()
	}
}

// logEvents prints every engine notification to the console.
func logEvents(sess *bbio.Session) {
	sess.Notify(func(ev bbio.Event) {
		fmt.Println(describeEvent(ev))
	})
}

// describeEvent renders one engine notification.
func describeEvent(ev bbio.Event) string {
	switch ev.Kind {
	case bbio.EventConnected:
		return styleEvent.Render("[event] connected")
	case bbio.EventMode:
		return styleEvent.Render(fmt.Sprintf("[event] mode: %s", ev.Mode))
	case bbio.EventPeripherals:
		return styleEvent.Render(fmt.Sprintf("[event] peripherals: 0x%02X", ev.Code))
	case bbio.EventWarning:
		return styleWarn.Render(fmt.Sprintf("[warn] %s", ev.Message))
	case bbio.EventError:
		return styleError.Render(fmt.Sprintf("[error] %v", ev.Err))
	case bbio.EventUARTReady:
		return styleEvent.Render("[event] uart: ready")
	case bbio.EventUARTEcho:
		return styleEvent.Render(fmt.Sprintf("[event] uart: rx echo %v", ev.Flag))
	default:
		return styleEvent.Render(fmt.Sprintf("[event] kind %d", ev.Kind))
	}
}

// hexDump renders data as a hex/ASCII dump, 16 bytes per row.
func hexDump(data []byte) string {
	var out string
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		hex := ""
		ascii := ""
		for i, b := range row {
			if i == 8 {
				hex += " "
			}
			hex += fmt.Sprintf("%02X ", b)
			if b >= 32 && b < 127 {
				ascii += string(rune(b))
			} else {
				ascii += "."
			}
		}
		out += fmt.Sprintf("  %04X  %-49s %s\n", off, hex, ascii)
	}
	return out
}
