package oommsg

import "testing"

func TestOomChDeliversMessage(t *testing.T) {
	resume := make(chan bool, 1)
	OomCh <- Oommsg_t{Need: 5, Resume: resume}

	msg := <-OomCh
	if msg.Need != 5 {
		t.Fatalf("Need = %d, want 5", msg.Need)
	}
	msg.Resume <- true
	if !<-resume {
		t.Fatal("resume signal not observed")
	}
}
