// Package workpool implements the proof-of-work generation pool: a FIFO
// queue of (root, callback) requests, a fixed worker count in which each
// worker takes the oldest queued request off the queue and searches it
// alone (workers do not race on the same request), ticket-based
// cooperative cancellation, and an optional non-blocking hardware-offload
// path. It is grounded on the
// teacher's execution/scheduler.go for its trylock/atomic idiom (a
// trylock.TryLocker guarding a shared resource, atomic.Uint64 counters
// read without holding that lock) and on the reference wallet.cpp's
// work_pool worker loop for the search algorithm itself.
package workpool

import (
	"container/list"
	"errors"
	"runtime"
	"sync"

	trylock "github.com/subchen/go-trylock/v2"
	"go.uber.org/atomic"
	"golang.org/x/crypto/blake2b"
	"lukechampine.com/frand"

	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
)

// ErrCancelled is delivered to a request's callback when its root is
// cancelled, or returned by GenerateBlocking for the same reason.
var ErrCancelled = errors.New("workpool: cancelled")

// innerIterations is the batch size a worker draws candidates in before
// re-checking the ticket, matching spec.md's "tight loops of 256
// iterations without re-acquiring memory".
const innerIterations = 256

// maxAutoWorkers caps the worker count New derives from runtime.NumCPU
// when a profile leaves WorkerCount at its zero value — config.Live's
// "min(runtime.NumCPU(), a sane cap)".
const maxAutoWorkers = 8

// Offloader is the optional hardware work-generation collaborator (an
// OpenCL device driver in the reference implementation). Attempt must
// return promptly: a worker only calls it opportunistically and always
// falls back to its own CPU search if it returns ok=false.
type Offloader interface {
	Attempt(root hash256.Hash256) (w uint64, ok bool)
}

type request struct {
	root     hash256.Hash256
	callback func(w uint64, ok bool)
}

// Pool is the proof-of-work generation pool.
type Pool struct {
	log       tplog.Logger
	profile   config.Profile
	offloader Offloader

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List // of *request
	done    bool
	ticket  *atomic.Uint64
	workers sync.WaitGroup

	offloadLock trylock.TryLocker
}

// New starts a Pool with profile.WorkerCount CPU workers. A zero
// WorkerCount (config.Live's default) resolves to min(runtime.NumCPU(),
// maxAutoWorkers); a negative one, like any other invalid value, falls
// back to exactly 1. offloader may be nil.
func New(profile config.Profile, log tplog.Logger, offloader Offloader) *Pool {
	n := profile.WorkerCount
	switch {
	case n == 0:
		n = runtime.NumCPU()
		if n > maxAutoWorkers {
			n = maxAutoWorkers
		}
	case n < 0:
		n = 1
	}

	p := &Pool{
		log:         tplog.CreateModuleLogger(tplogcmm.InfoLevel, "workpool", log),
		profile:     profile,
		offloader:   offloader,
		queue:       list.New(),
		ticket:      atomic.NewUint64(0),
		offloadLock: trylock.New(),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workers.Add(n)
	for i := 0; i < n; i++ {
		go p.workerLoop()
	}
	return p
}

// Generate enqueues a work request for root; callback runs on a worker
// goroutine once a solution is found or the worker abandons the search.
// A request Cancel removes from the queue gets its callback on Cancel's
// caller, and a request made after Stop gets it synchronously inside
// Generate; ok is false in all but the solved case.
func (p *Pool) Generate(root hash256.Hash256, callback func(w uint64, ok bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		callback(0, false)
		return
	}
	p.queue.PushBack(&request{root: root, callback: callback})
	p.cond.Signal()
}

// GenerateBlocking generates work for root and waits for the result,
// returning ErrCancelled if the request is cancelled before completion.
func (p *Pool) GenerateBlocking(root hash256.Hash256) (uint64, error) {
	result := make(chan struct {
		w  uint64
		ok bool
	}, 1)
	p.Generate(root, func(w uint64, ok bool) {
		result <- struct {
			w  uint64
			ok bool
		}{w, ok}
	})
	r := <-result
	if !r.ok {
		return 0, ErrCancelled
	}
	return r.w, nil
}

// Cancel removes every queued request whose root matches (invoking each
// callback with ok=false) and, if a worker is currently searching that
// root, bumps the ticket so every worker abandons its current attempt.
func (p *Pool) Cancel(root hash256.Hash256) {
	p.mu.Lock()
	var removed []*request
	for e := p.queue.Front(); e != nil; {
		next := e.Next()
		r := e.Value.(*request)
		if r.root.Equal(root) {
			p.queue.Remove(e)
			removed = append(removed, r)
		}
		e = next
	}
	p.ticket.Inc()
	p.mu.Unlock()

	for _, r := range removed {
		r.callback(0, false)
	}
}

// Validate reports whether w is a valid proof of work for root under the
// pool's configured threshold.
func (p *Pool) Validate(root hash256.Hash256, w uint64) bool {
	return workValue(root, w) < p.profile.WorkThreshold
}

// Stop marks the pool done and wakes every worker. Workers finish draining
// whatever is already queued — each remaining request still gets a real
// attempt — then exit; Generate calls made after Stop are rejected
// immediately with ok=false. Stop blocks until every worker has exited.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.done = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}

func (p *Pool) workerLoop() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.done {
			p.cond.Wait()
		}
		if p.queue.Len() == 0 && p.done {
			p.mu.Unlock()
			return
		}
		front := p.queue.Front()
		req := front.Value.(*request)
		p.queue.Remove(front)
		myTicket := p.ticket.Load()
		p.mu.Unlock()

		w, ok := p.solve(req.root, myTicket)
		req.callback(w, ok)
	}
}

// solve searches for a valid nonce for root, abandoning the attempt at the
// next batch boundary once the pool's ticket has moved past myTicket. Only
// Cancel advances the ticket; finding a solution does not.
func (p *Pool) solve(root hash256.Hash256, myTicket uint64) (uint64, bool) {
	if p.offloader != nil {
		if p.offloadLock.TryLock(nil) {
			w, ok := p.offloader.Attempt(root)
			p.offloadLock.Unlock()
			if ok {
				return w, true
			}
		}
	}

	var seedBytes [8]byte
	frand.Read(seedBytes[:])
	var seed uint64
	for i := 7; i >= 0; i-- {
		seed = seed<<8 | uint64(seedBytes[i])
	}
	rng := newXorshift1024(seed)
	for {
		if p.ticket.Load() != myTicket {
			return 0, false
		}
		for i := 0; i < innerIterations; i++ {
			w := rng.next()
			if workValue(root, w) < p.profile.WorkThreshold {
				return w, true
			}
		}
	}
}

// workValue implements spec.md's work_value: Blake2b-8 of the
// little-endian nonce followed by the root's raw bytes, read back as a
// little-endian u64. A fresh hasher is constructed per call — no state is
// carried between attempts, so there is no possibility of one attempt's
// digest leaking into the next's.
func workValue(root hash256.Hash256, w uint64) uint64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic("workpool: blake2b.New(8): " + err.Error())
	}

	var wBytes [8]byte
	for i := 0; i < 8; i++ {
		wBytes[i] = byte(w >> (8 * i))
	}
	h.Write(wBytes[:])
	h.Write(root.Bytes())

	sum := h.Sum(nil)
	var out uint64
	for i := 7; i >= 0; i-- {
		out = out<<8 | uint64(sum[i])
	}
	return out
}

// xorshift1024star is the worker RNG spec.md calls for: fast, non-crypto,
// seeded once per solve attempt from a CSPRNG so different workers (and
// different attempts) don't retread the same nonce sequence.
type xorshift1024star struct {
	s [16]uint64
	p int
}

func newXorshift1024(seed uint64) *xorshift1024star {
	x := &xorshift1024star{}
	z := seed
	for i := range x.s {
		z += 0x9e3779b97f4a7c15
		zz := z
		zz = (zz ^ (zz >> 30)) * 0xbf58476d1ce4e5b9
		zz = (zz ^ (zz >> 27)) * 0x94d049bb133111eb
		zz = zz ^ (zz >> 31)
		x.s[i] = zz
	}
	return x
}

func (x *xorshift1024star) next() uint64 {
	s0 := x.s[x.p]
	x.p = (x.p + 1) & 15
	s1 := x.s[x.p]
	s1 ^= s1 << 31
	s1 ^= s1 >> 11
	s0 ^= s0 >> 30
	x.s[x.p] = s0 ^ s1
	return x.s[x.p] * 1181783497276652981
}
