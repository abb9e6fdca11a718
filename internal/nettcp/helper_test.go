package nettcp

import "testing"

func TestHelperChainOrder(t *testing.T) {
	var chain helperChain
	a := chain.register(HelperFuncs{}, 1)
	b := chain.register(HelperFuncs{}, 2)
	c := chain.register(HelperFuncs{}, 3)

	fwd := chain.forward()
	if len(fwd) != 3 || fwd[0] != a || fwd[1] != b || fwd[2] != c {
		t.Fatalf("forward() order wrong: %v", fwd)
	}

	rev := chain.reverse()
	if len(rev) != 3 || rev[0] != c || rev[1] != b || rev[2] != a {
		t.Fatalf("reverse() order wrong: %v", rev)
	}
}

func TestHelperChainRemove(t *testing.T) {
	var chain helperChain
	a := chain.register(HelperFuncs{}, 1)
	b := chain.register(HelperFuncs{}, 2)
	chain.remove(a)

	fwd := chain.forward()
	if len(fwd) != 1 || fwd[0] != b {
		t.Fatalf("forward() after remove = %v, want [b]", fwd)
	}
}

func TestHelperFuncsNilSafe(t *testing.T) {
	var h HelperFuncs
	if handled, err := h.establish(true); handled || err != nil {
		t.Fatalf("nil Establish should no-op, got (%v, %v)", handled, err)
	}
	if handled, err := h.send(NewBuffer(nil)); handled || err != nil {
		t.Fatalf("nil Send should no-op, got (%v, %v)", handled, err)
	}
	estab := false
	if handled, err := h.recv(NewBuffer(nil), &estab); handled || err != nil || estab {
		t.Fatalf("nil Recv should no-op, got (%v, %v, estab=%v)", handled, err, estab)
	}
}

func TestHelperHandleFDAndDeregister(t *testing.T) {
	c := &Conn{fd: 42}
	handle := c.RegisterHelper(HelperFuncs{})
	if handle.FD() != 42 {
		t.Fatalf("FD() = %d, want 42", handle.FD())
	}
	if len(c.helpers.forward()) != 1 {
		t.Fatal("expected one registered helper")
	}
	handle.Deregister()
	if len(c.helpers.forward()) != 0 {
		t.Fatal("expected helper removed after Deregister")
	}
	// Deregistering twice (or a nil/zero handle) must not panic.
	handle.Deregister()
}
