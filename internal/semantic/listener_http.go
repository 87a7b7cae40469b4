package semantic

import (
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// builtinErrorBodies are the short, built-in error response bodies a
// listener starts with before any ErrNNN statement overrides them.
var builtinErrorBodies = config.ErrorBodies{
	Err404: "Not Found",
	Err413: "Request Entity Too Large",
	Err414: "Request URI Too Long",
	Err500: "Internal Server Error",
	Err501: "Not Implemented",
	Err503: "Service Unavailable",
}

// listenerBuildState tracks a Listener's mono-shot flags and the
// scope it inherits defaults from.
type listenerBuildState struct {
	listener     *config.Listener
	global       *config.Global
	checkURLSeen bool
}

// NewListenerState seeds a Listener with its defaults: no external
// socket, timeout from global, rewrite-location 1, built-in error
// bodies, verb = the index-0 method set.
func NewListenerState(global *config.Global) *listenerBuildState {
	return &listenerBuildState{
		listener: &config.Listener{
			ExternalFD:    -1,
			ClientTimeout: global.ClientTimeout,
			Errors:        builtinErrorBodies,
			Rewrite:       config.RewriteDefault,
			Verb:          XHTTPRegex(0),
		},
		global: global,
	}
}

// Listener returns the built config.Listener.
func (st *listenerBuildState) Listener() *config.Listener { return st.listener }

// ListenHTTPTable builds the keyword table shared by ListenHTTP and,
// via ListenHTTPSTable, ListenHTTPS.
func ListenHTTPTable(st *listenerBuildState) section.Table {
	return section.Table{
		{Keyword: "Address", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignAddress(&st.listener.Address, st.global.DNSEnabled)(ctx, nil)
		}},
		{Keyword: "Port", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignPort(&st.listener.Address, st.global.DNSEnabled)(ctx, nil)
		}},
		{Keyword: "SocketFrom", Handler: func(ctx *section.Context, target any) section.Result {
			return handleSocketFrom(st, ctx)
		}},
		{Keyword: "xHTTP", Handler: func(ctx *section.Context, target any) section.Result {
			var idx int
			res := valueparse.AssignIntRange(&idx, 0, 4)(ctx, nil)
			if res == section.OK {
				st.listener.Verb = XHTTPRegex(idx)
			}
			return res
		}},
		{Keyword: "Client", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				st.listener.ClientTimeout = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "CheckURL", Handler: func(ctx *section.Context, target any) section.Result {
			if st.checkURLSeen {
				tok, _ := ctx.Lex.Next()
				return ctx.Fail(diag.Errorf(tok.Range, "CheckURL: may only appear once per listener"))
			}
			st.checkURLSeen = true
			return valueparse.AssignRegex(&st.listener.URLFilter, st.global.IgnoreCase)(ctx, nil)
		}},
		{Keyword: "Err404", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err404)(ctx, nil)
		}},
		{Keyword: "Err413", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err413)(ctx, nil)
		}},
		{Keyword: "Err414", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err414)(ctx, nil)
		}},
		{Keyword: "Err500", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err500)(ctx, nil)
		}},
		{Keyword: "Err501", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err501)(ctx, nil)
		}},
		{Keyword: "Err503", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignStringFromFile(&st.listener.Errors.Err503)(ctx, nil)
		}},
		{Keyword: "MaxRequest", Handler: func(ctx *section.Context, target any) section.Result {
			var n int
			res := valueparse.AssignInt(&n, 63)(ctx, nil)
			if res == section.OK {
				st.listener.MaxRequest = int64(n)
			}
			return res
		}},
		{Keyword: "HeadRemove", Handler: func(ctx *section.Context, target any) section.Result {
			return appendHeaderRegex(&st.listener.HeaderRemove, st.global.IgnoreCase)(ctx, nil)
		}},
		{Keyword: "RewriteLocation", Handler: func(ctx *section.Context, target any) section.Result {
			var mode int
			res := valueparse.AssignIntRange(&mode, 0, 2)(ctx, nil)
			if res == section.OK {
				st.listener.Rewrite = config.RewriteMode(mode)
			}
			return res
		}},
		{Keyword: "RewriteDestination", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&st.listener.RewriteDestination)(ctx, nil)
		}},
		{Keyword: "LogLevel", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignIntRange(&st.listener.LogLevel, valueparse.LogLevelMin, valueparse.LogLevelMax)(ctx, nil)
		}},
		{Keyword: "AddHeader", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AppendHeaderLine(&st.listener.AddHeader)(ctx, nil)
		}},
		{Keyword: "Service", Handler: func(ctx *section.Context, target any) section.Result {
			svc, err := ParseService(ctx, st.global)
			if err != nil {
				return ctx.Fail(err)
			}
			st.listener.Services = append(st.listener.Services, svc)
			return section.OK
		}},
		{Keyword: "ACME", Handler: func(ctx *section.Context, target any) section.Result {
			var dir string
			if res := valueparse.AssignString(&dir)(ctx, nil); res != section.OK {
				return res
			}
			svc, err := NewACMEService(dir)
			if err != nil {
				return ctx.Fail(err)
			}
			st.listener.Services = append(st.listener.Services, svc)
			return section.OK
		}},
		{Keyword: "End", Handler: section.EndHandler},
	}
}

// readOptionalServiceName consumes the "Service [name]" inline
// argument when present, truncating an over-long name exactly the way
// the Name statement inside the section body does. With no STRING
// immediately following the keyword, the token is pushed back so the
// normal section.Run newline check still applies.
func readOptionalServiceName(ctx *section.Context, svcSt *serviceBuildState) section.Result {
	tok, err := ctx.Lex.Next()
	if err != nil {
		return ctx.Fail(err)
	}
	if tok.Type != lexer.STRING {
		ctx.Lex.PushBack(tok)
		return section.OK
	}
	name := tok.Lexeme
	if len(name) > config.ServiceNameMax {
		diag.Warnf(tok.Range, "service name %q truncated to %d characters", name, config.ServiceNameMax)
		name = name[:config.ServiceNameMax]
	}
	svcSt.service.Name = name
	return section.OK
}

// handleSocketFrom dials a UNIX socket to a sibling process, receives
// one file descriptor via SCM_RIGHTS, and populates the listener's
// address from the received socket's local address.
func handleSocketFrom(st *listenerBuildState, ctx *section.Context) section.Result {
	var path string
	if res := valueparse.AssignString(&path)(ctx, nil); res != section.OK {
		return res
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return ctx.Fail(diag.Errorf(ctx.Range, "SocketFrom: cannot dial %q: %v", path, err))
	}
	defer conn.Close()

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return ctx.Fail(diag.Errorf(ctx.Range, "SocketFrom: %q is not a UNIX-domain socket", path))
	}

	fd, rights, err := recvFD(uc)
	if err != nil {
		return ctx.Fail(diag.Errorf(ctx.Range, "SocketFrom: %v", err))
	}
	_ = rights

	sa, err := syscall.Getsockname(fd)
	if err != nil {
		syscall.Close(fd)
		return ctx.Fail(diag.Errorf(ctx.Range, "SocketFrom: getsockname: %v", err))
	}

	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		st.listener.Address = valueparse.Address{
			Family: valueparse.AFInet, IP: net.IP(a.Addr[:]),
			Port: uint16(a.Port), HasAddress: true, HasPort: true,
		}
	case *syscall.SockaddrInet6:
		st.listener.Address = valueparse.Address{
			Family: valueparse.AFInet6, IP: net.IP(a.Addr[:]),
			Port: uint16(a.Port), HasAddress: true, HasPort: true,
		}
	case *syscall.SockaddrUnix:
		st.listener.Address = valueparse.Address{
			Family: valueparse.AFUnix, UnixPath: a.Name, HasAddress: true,
		}
	}

	st.listener.ExternalFD = fd
	return section.OK
}

// recvFD reads one SCM_RIGHTS control message off uc and returns the
// first file descriptor it carries.
func recvFD(uc *net.UnixConn) (int, []int, error) {
	rawConn, err := uc.SyscallConn()
	if err != nil {
		return -1, nil, err
	}

	var (
		fd      int
		oobN    int
		readErr error
	)
	buf := make([]byte, 1)
	oob := make([]byte, syscall.CmsgSpace(4))

	ctrlErr := rawConn.Read(func(sysfd uintptr) bool {
		var n int
		n, oobN, _, _, readErr = syscall.Recvmsg(int(sysfd), buf, oob, 0)
		_ = n
		return true
	})
	if ctrlErr != nil {
		return -1, nil, ctrlErr
	}
	if readErr != nil {
		return -1, nil, readErr
	}

	msgs, err := syscall.ParseSocketControlMessage(oob[:oobN])
	if err != nil {
		return -1, nil, err
	}
	for _, m := range msgs {
		fds, err := syscall.ParseUnixRights(&m)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			fd = fds[0]
			return fd, fds, nil
		}
	}
	return -1, nil, errNoRights
}

var errNoRights = errors.New("no file descriptor received")
