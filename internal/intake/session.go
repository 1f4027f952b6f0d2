package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mzyy94/scanrelay/internal/scan"
)

// sessionState tracks a control connection through its lifecycle. Completed
// and Aborted are terminal.
type sessionState int

const (
	stateActive sessionState = iota
	stateCompleted
	stateAborted
)

// ftpSession is the per-connection protocol state. Nothing here is shared
// between connections.
type ftpSession struct {
	id    string
	conn  net.Conn
	tp    *textproto.Conn
	cfg   FTPConfig
	namer *scan.Namer
	sink  Sink

	state    sessionState
	user     string
	authed   bool
	cwd      []string
	declared int64        // ALLO-declared size for the next STOR, -1 when absent
	dataLn   net.Listener // passive listener for the next transfer
	stored   int
}

func newFTPSession(conn net.Conn, cfg FTPConfig, namer *scan.Namer, sink Sink) *ftpSession {
	return &ftpSession{
		id:       uuid.NewString()[:8],
		conn:     conn,
		tp:       textproto.NewConn(conn),
		cfg:      cfg,
		namer:    namer,
		sink:     sink,
		declared: -1,
	}
}

func (s *ftpSession) run() {
	defer s.close()
	remote := s.conn.RemoteAddr().String()
	slog.Debug("ftp session open", "session", s.id, "remote", remote)

	s.reply(220, "scanrelay ready")
	for s.state == stateActive {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		line, err := s.tp.ReadLine()
		if err != nil {
			// device went away or sent garbage framing; this connection only
			slog.Debug("ftp session aborted", "session", s.id, "remote", remote, "err", err)
			s.state = stateAborted
			return
		}
		s.handle(line)
	}
	slog.Debug("ftp session closed", "session", s.id, "remote", remote, "documents", s.stored)
}

func (s *ftpSession) close() {
	s.closeDataListener()
	s.conn.Close()
}

func (s *ftpSession) closeDataListener() {
	if s.dataLn != nil {
		s.dataLn.Close()
		s.dataLn = nil
	}
}

func (s *ftpSession) reply(code int, msg string) {
	s.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	if err := s.tp.PrintfLine("%d %s", code, msg); err != nil {
		s.state = stateAborted
	}
}

// handle dispatches one control command.
func (s *ftpSession) handle(line string) {
	verb, arg, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(verb)
	slog.Debug("ftp command", "session", s.id, "verb", verb)

	switch verb {
	case "USER":
		s.user = arg
		s.reply(331, "password required")
	case "PASS":
		if s.cfg.User == "" || (s.user == s.cfg.User && arg == s.cfg.Pass) {
			s.authed = true
			s.reply(230, "login ok")
		} else {
			slog.Warn("ftp login rejected", "session", s.id, "user", s.user)
			s.reply(530, "login incorrect")
		}
	case "SYST":
		s.reply(215, "UNIX Type: L8")
	case "FEAT":
		s.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
		s.tp.PrintfLine("211-Features:")
		s.tp.PrintfLine(" EPSV")
		s.tp.PrintfLine(" UTF8")
		s.tp.PrintfLine("211 End")
	case "OPTS":
		s.reply(200, "ok")
	case "TYPE":
		s.reply(200, "type set")
	case "NOOP":
		s.reply(200, "ok")
	case "PWD":
		s.reply(257, fmt.Sprintf("%q is the current directory", "/"+strings.Join(s.cwd, "/")))
	case "CWD":
		s.changeDir(arg)
	case "CDUP":
		if len(s.cwd) > 0 {
			s.cwd = s.cwd[:len(s.cwd)-1]
		}
		s.reply(250, "directory changed")
	case "ALLO":
		s.allocate(arg)
	case "PASV":
		s.passive(false)
	case "EPSV":
		s.passive(true)
	case "STOR":
		s.store(arg)
	case "QUIT":
		s.reply(221, "goodbye")
		s.state = stateCompleted
	default:
		s.reply(502, "command not implemented")
	}
}

// changeDir records the device-chosen directory as a subdirectory hint for
// the relay destination. Absolute paths reset the hint; traversal above the
// root is ignored by the sanitizer.
func (s *ftpSession) changeDir(arg string) {
	if strings.HasPrefix(arg, "/") {
		s.cwd = nil
	}
	if cleaned := scan.CleanSubdir(arg); cleaned != "" {
		s.cwd = append(s.cwd, strings.Split(cleaned, "/")...)
	}
	s.reply(250, "directory changed")
}

func (s *ftpSession) allocate(arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		s.reply(501, "bad ALLO argument")
		return
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		s.reply(501, "bad ALLO argument")
		return
	}
	s.declared = n
	s.reply(200, "ok")
}

// passive opens an ephemeral data listener on the interface the control
// connection arrived on and announces it in 227 (PASV) or 229 (EPSV) form.
func (s *ftpSession) passive(extended bool) {
	s.closeDataListener()

	host := "0.0.0.0"
	localIP := net.IPv4zero
	if addr, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		localIP = addr.IP
		host = addr.IP.String()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		slog.Warn("ftp passive listen failed", "session", s.id, "err", err)
		s.reply(425, "cannot open data connection")
		return
	}
	s.dataLn = ln
	port := ln.Addr().(*net.TCPAddr).Port

	if extended {
		s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
		return
	}
	ip4 := localIP.To4()
	if ip4 == nil {
		s.closeDataListener()
		s.reply(425, "PASV requires IPv4, use EPSV")
		return
	}
	s.reply(227, fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d)",
		ip4[0], ip4[1], ip4[2], ip4[3], port>>8, port&0xff))
}

// store receives one document over the passive data connection, decodes it,
// and hands it to the sink. Decode failures discard the transfer and are
// reported to the device; they never reach the relay.
func (s *ftpSession) store(name string) {
	if s.cfg.User != "" && !s.authed {
		s.reply(530, "not logged in")
		return
	}
	if s.dataLn == nil {
		s.reply(425, "use PASV or EPSV first")
		return
	}
	declared := s.declared
	s.declared = -1

	s.reply(150, "ok to send data")

	if tcpLn, ok := s.dataLn.(*net.TCPListener); ok {
		tcpLn.SetDeadline(time.Now().Add(s.cfg.DataTimeout))
	}
	data, err := s.receive(declared)
	s.closeDataListener()
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			slog.Warn("ftp transfer rejected", "session", s.id, "name", name, "err", err)
			s.reply(552, "exceeded storage allocation")
		case errors.Is(err, ErrLengthMismatch):
			slog.Warn("ftp transfer discarded", "session", s.id, "name", name, "err", err)
			s.reply(451, "size mismatch, transfer discarded")
		default:
			slog.Warn("ftp data connection failed", "session", s.id, "name", name, "err", err)
			s.reply(426, "data connection error")
		}
		return
	}

	doc := s.namer.NewDocument(name, strings.Join(s.cwd, "/"), data)
	slog.Info("scan received", "session", s.id, "id", doc.ID, "client_name", name,
		"name", doc.Name, "bytes", len(data))
	s.stored++
	s.sink(doc)
	s.reply(226, "transfer complete")
}

func (s *ftpSession) receive(declared int64) ([]byte, error) {
	dataConn, err := s.dataLn.Accept()
	if err != nil {
		return nil, fmt.Errorf("data accept: %w", err)
	}
	defer dataConn.Close()
	dataConn.SetDeadline(time.Now().Add(s.cfg.DataTimeout))
	return Spool(dataConn, declared, s.cfg.MaxSize)
}
