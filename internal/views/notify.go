package views

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// TerminalNotifier prints notifications as single styled lines
type TerminalNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

// NewTerminalNotifier writes to out; logger may be nil
func NewTerminalNotifier(out io.Writer, logger *zap.Logger) *TerminalNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalNotifier{out: out, logger: logger}
}

func (n *TerminalNotifier) Success(msg string) {
	n.logger.Debug("notify", zap.String("level", "success"), zap.String("message", msg))
	n.write(successStyle.Render("✔ " + msg))
}

func (n *TerminalNotifier) Error(msg string) {
	n.logger.Debug("notify", zap.String("level", "error"), zap.String("message", msg))
	n.write(errorStyle.Render("✘ " + msg))
}

func (n *TerminalNotifier) write(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, line)
}
