//go:build linux

package reactor

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// EpollPoller is the Linux Poller implementation, grounded on the teacher's
// epoll reactor (level-triggered registration, a reusable event buffer sized
// to the worker's expected connection count).
type EpollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance. maxEvents bounds the per-Wait batch
// size; it does not bound the number of registered descriptors.
func NewPoller(maxEvents int) (*EpollPoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = 256
	}
	return &EpollPoller{epfd: fd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func epollMask(wantRead, wantWrite bool) uint32 {
	var mask uint32 = unix.EPOLLRDHUP
	if wantRead {
		mask |= unix.EPOLLIN
	}
	if wantWrite {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *EpollPoller) Register(fd int, wantRead, wantWrite bool) error {
	ev := unix.EpollEvent{Events: epollMask(wantRead, wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *EpollPoller) Modify(fd int, wantRead, wantWrite bool) error {
	ev := unix.EpollEvent{Events: epollMask(wantRead, wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *EpollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *EpollPoller) Wait(timeout time.Duration) ([]Event, error) {
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}
	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		e := p.events[i]
		switch {
		case e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0:
			out = append(out, Event{Fd: int(e.Fd), Kind: EventHangup})
		case e.Events&unix.EPOLLERR != 0:
			out = append(out, Event{Fd: int(e.Fd), Kind: EventError})
		default:
			if e.Events&unix.EPOLLIN != 0 {
				out = append(out, Event{Fd: int(e.Fd), Kind: EventReadable})
			}
			if e.Events&unix.EPOLLOUT != 0 {
				out = append(out, Event{Fd: int(e.Fd), Kind: EventWritable})
			}
		}
	}
	return out, nil
}

func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}

// tcpListener is the Linux Listener implementation: a raw non-blocking
// socket so its fd can be registered directly with an EpollPoller (a
// net.TCPListener's fd is owned by the Go runtime's own netpoller and
// cannot be shared).
type tcpListener struct {
	fd   int
	addr net.Addr
}

// Listen opens a non-blocking TCP listener on addr (host:port).
func Listen(addr string) (Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: bind: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen: %w", err)
	}
	return &tcpListener{fd: fd, addr: tcpAddr}, nil
}

func (l *tcpListener) Fd() int        { return l.fd }
func (l *tcpListener) Addr() net.Addr { return l.addr }
func (l *tcpListener) Close() error   { return unix.Close(l.fd) }

// AcceptNonBlocking accepts one pending connection and disables Nagle's
// algorithm on it, grounded on the teacher's transport_linux.go, which sets
// TCP_NODELAY on every accepted socket so small request/response writes are
// not held back waiting to coalesce.
func (l *tcpListener) AcceptNonBlocking() (int, net.Addr, IOState, error) {
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return -1, nil, IOWouldBlock, nil
		}
		return -1, nil, IOError, fmt.Errorf("reactor: accept4: %w", err)
	}
	if err := unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(nfd)
		return -1, nil, IOError, fmt.Errorf("reactor: setsockopt TCP_NODELAY: %w", err)
	}
	return nfd, sockaddrToAddr(sa), IOOk, nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	default:
		return nil
	}
}

func sysRead(fd int, buf []byte) (int, IOState, error) {
	n, err := unix.Read(fd, buf)
	switch {
	case err == nil && n == 0:
		return 0, IOEof, nil
	case err == nil:
		return n, IOOk, nil
	case err == unix.EAGAIN:
		return 0, IOWouldBlock, nil
	default:
		return 0, IOError, fmt.Errorf("reactor: read: %w", err)
	}
}

func sysWrite(fd int, buf []byte) (int, IOState, error) {
	n, err := unix.Write(fd, buf)
	switch {
	case err == nil:
		return n, IOOk, nil
	case err == unix.EAGAIN:
		return 0, IOWouldBlock, nil
	default:
		return 0, IOError, fmt.Errorf("reactor: write: %w", err)
	}
}

// SetAffinity pins the calling OS thread to cpu, grounded on the teacher's
// affinity package but reimplemented with golang.org/x/sys/unix instead of
// cgo.
func SetAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

func closeFd(fd int) error { return unix.Close(fd) }
