//go:build unix && !linux && !darwin && !freebsd && !netbsd && !openbsd

package nettcp

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollReactor is the fallback poller adapter for unix-family platforms
// without a dedicated epoll/kqueue implementation here (Solaris, AIX,
// Illumos, ...). It uses the portable poll(2) syscall instead of a
// per-fd goroutine, preserving the single-thread, no-busy-wake model
// the core requires.
type pollReactor struct {
	mu   sync.Mutex
	regs map[int]*pollReg

	wake     [2]int
	stopOnce sync.Once
	stopped  chan struct{}
}

type pollReg struct {
	events  EventMask
	handler FDHandler
}

func newOSReactor() reactor { return &pollReactor{regs: make(map[int]*pollReg)} }

func (r *pollReactor) Start() error {
	if err := unix.Pipe2(r.wake[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return err
	}
	r.stopped = make(chan struct{})
	go r.loop()
	return nil
}

func (r *pollReactor) Stop() error {
	r.stopOnce.Do(func() {
		var b [1]byte
		_, _ = unix.Write(r.wake[1], b[:])
		<-r.stopped
		_ = unix.Close(r.wake[0])
		_ = unix.Close(r.wake[1])
	})
	return nil
}

func (r *pollReactor) Register(fd int, events EventMask, h FDHandler) error {
	if fd < 0 || h == nil {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	r.regs[fd] = &pollReg{events: events, handler: h}
	r.mu.Unlock()
	return nil
}

func (r *pollReactor) Unregister(fd int) error {
	r.mu.Lock()
	delete(r.regs, fd)
	r.mu.Unlock()
	return nil
}

func (r *pollReactor) loop() {
	defer close(r.stopped)
	for {
		r.mu.Lock()
		fds := make([]unix.PollFd, 0, len(r.regs)+1)
		fds = append(fds, unix.PollFd{Fd: int32(r.wake[0]), Events: unix.POLLIN})
		order := make([]int, 0, len(r.regs))
		for fd, reg := range r.regs {
			var ev int16
			if reg.events.has(Readable) {
				ev |= unix.POLLIN
			}
			if reg.events.has(Writable) {
				ev |= unix.POLLOUT
			}
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: ev})
			order = append(order, fd)
		}
		r.mu.Unlock()

		n, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents != 0 {
			return
		}
		for i, fd := range order {
			pf := fds[i+1]
			if pf.Revents == 0 {
				continue
			}
			r.mu.Lock()
			reg := r.regs[fd]
			r.mu.Unlock()
			if reg == nil {
				continue
			}
			var mask EventMask
			if pf.Revents&unix.POLLIN != 0 {
				mask |= Readable
			}
			if pf.Revents&unix.POLLOUT != 0 {
				mask |= Writable
			}
			if pf.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				mask |= Exception
			}
			if mask != 0 {
				reg.handler(fd, mask)
			}
		}
	}
}
