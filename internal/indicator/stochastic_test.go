package indicator

import "testing"

func TestStochastic_Warmup(t *testing.T) {
	s := NewStochastic(5, 3, 3)
	if s.Warmup() != 9 {
		t.Fatalf("Warmup() = %d, want 9", s.Warmup())
	}

	for i := 0; i < 8; i++ {
		p := 1.1 + 0.001*float64(i)
		if _, _, ok := s.Update(p+0.0005, p-0.0005, p); ok {
			t.Fatalf("bar %d: value defined before warmup", i)
		}
	}
	if _, _, ok := s.Update(1.2, 1.1, 1.15); !ok {
		t.Fatal("expected a value after warmup bars")
	}
}

func TestStochastic_Values(t *testing.T) {
	// k=3, no smoothing, d=2
	s := NewStochastic(3, 1, 2)
	bars := [][3]float64{
		{12, 8, 10},  // window not full
		{14, 9, 13},  // window not full
		{15, 10, 14}, // hh 15, ll 8: k = 6/7*100, d undefined
		{16, 11, 11}, // hh 16, ll 9: k = 2/7*100
	}

	var k, d float64
	var ok bool
	for i, b := range bars {
		k, d, ok = s.Update(b[0], b[1], b[2])
		if i < 3 && ok {
			t.Fatalf("bar %d: unexpected value", i)
		}
	}
	if !ok {
		t.Fatal("expected values on bar 3")
	}
	wantK := 2.0 / 7 * 100
	wantD := (6.0/7*100 + wantK) / 2
	if !almostEqual(k, wantK, 1e-9) {
		t.Errorf("k = %f, want %f", k, wantK)
	}
	if !almostEqual(d, wantD, 1e-9) {
		t.Errorf("d = %f, want %f", d, wantD)
	}
}

func TestStochastic_FlatRange(t *testing.T) {
	s := NewStochastic(2, 1, 1)
	s.Update(1.1, 1.1, 1.1)
	k, d, ok := s.Update(1.1, 1.1, 1.1)
	if !ok || k != 50 || d != 50 {
		t.Errorf("flat range: got k=%v d=%v ok=%v, want 50/50", k, d, ok)
	}
}
