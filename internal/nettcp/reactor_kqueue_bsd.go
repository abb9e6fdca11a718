//go:build darwin || freebsd || netbsd || openbsd

package nettcp

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueReactor is the BSD/Darwin poller adapter, adapted from the
// teacher's internal/runtime/asyncio/kqueue_poller_bsd.go: the same
// kqueue/kevent wiring, but keyed directly on the raw descriptor the
// engine already owns instead of deriving an fd from a net.Conn.
type kqueueReactor struct {
	kq int

	mu   sync.RWMutex
	regs map[int]*kqReg
}

type kqReg struct {
	events  EventMask
	handler FDHandler
}

func newOSReactor() reactor { return &kqueueReactor{regs: make(map[int]*kqReg)} }

func (r *kqueueReactor) Start() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	r.kq = kq
	go r.loop()
	return nil
}

func (r *kqueueReactor) Stop() error {
	r.mu.Lock()
	regs := r.regs
	r.regs = make(map[int]*kqReg)
	r.mu.Unlock()
	for fd := range regs {
		del := []unix.Kevent_t{
			{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
			{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
		}
		_, _ = unix.Kevent(r.kq, del, nil, nil)
	}
	if r.kq > 0 {
		err := unix.Close(r.kq)
		r.kq = -1
		return err
	}
	return nil
}

func (r *kqueueReactor) Register(fd int, events EventMask, h FDHandler) error {
	if fd < 0 || h == nil {
		return ErrInvalidArgument
	}
	var changes []unix.Kevent_t
	if events.has(Readable) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if events.has(Writable) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE})
	} else {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	// Deletes of filters that were never added return ENOENT; that is
	// expected on first registration and ignored below per-change by
	// issuing them individually rather than as one batch.
	for _, ch := range changes {
		_, err := unix.Kevent(r.kq, []unix.Kevent_t{ch}, nil, nil)
		if err != nil && err != unix.ENOENT && ch.Flags&unix.EV_DELETE == 0 {
			return err
		}
	}
	r.mu.Lock()
	r.regs[fd] = &kqReg{events: events, handler: h}
	r.mu.Unlock()
	return nil
}

func (r *kqueueReactor) Unregister(fd int) error {
	del := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(r.kq, del, nil, nil)
	r.mu.Lock()
	delete(r.regs, fd)
	r.mu.Unlock()
	return nil
}

func (r *kqueueReactor) loop() {
	events := make([]unix.Kevent_t, 128)
	for {
		n, err := unix.Kevent(r.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n <= 0 {
			continue
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Ident)
			r.mu.RLock()
			reg := r.regs[fd]
			r.mu.RUnlock()
			if reg == nil {
				continue
			}
			var mask EventMask
			if ev.Flags&unix.EV_ERROR != 0 {
				mask |= Exception
			}
			if ev.Filter == unix.EVFILT_READ && reg.events.has(Readable) {
				mask |= Readable
			}
			if ev.Filter == unix.EVFILT_WRITE && reg.events.has(Writable) {
				mask |= Writable
			}
			if ev.Flags&unix.EV_EOF != 0 {
				mask |= Readable
			}
			if mask != 0 {
				reg.handler(fd, mask)
			}
		}
	}
}
