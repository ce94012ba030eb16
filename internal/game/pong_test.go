package game

import (
	"reflect"
	"testing"
	"time"

	"github.com/playmatatu/arena/internal/models"
)

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPong() *Pong {
	m := models.Match{ID: 7, GameName: PongName, CreatedAt: created}
	m.Players[0] = models.MatchPlayer{PlayerID: 1}
	m.Players[1] = models.MatchPlayer{PlayerID: 2}
	return NewPong(m)
}

// running skips the start countdown.
func running(t *testing.T) *Pong {
	t.Helper()
	p := newTestPong()
	p.Advance(created.Add(StartDelay))
	if p.Status() != models.MatchRunning {
		t.Fatalf("status after countdown = %s, want running", p.Status())
	}
	return p
}

func pongState(p *Pong) PongState {
	return p.State().(PongState)
}

func TestNewPongLayout(t *testing.T) {
	p := newTestPong()
	s := pongState(p)

	if s.Status != models.MatchWaiting {
		t.Errorf("status = %s, want waiting", s.Status)
	}
	if s.Players[0].X != 10 || s.Players[1].X != 1014 {
		t.Errorf("paddle planes = %v/%v, want 10/1014", s.Players[0].X, s.Players[1].X)
	}
	for i, pl := range s.Players {
		if pl.Y != 250 {
			t.Errorf("player %d y = %v, want 250", i, pl.Y)
		}
	}
	if s.Ball.X != 512 || s.Ball.Y != 300 {
		t.Errorf("ball = (%v,%v), want centre", s.Ball.X, s.Ball.Y)
	}
	if abs(s.Ball.SpeedX) != BallSpeed || abs(s.Ball.SpeedY) != BallSpeed {
		t.Errorf("ball speed = (%v,%v), want ±4", s.Ball.SpeedX, s.Ball.SpeedY)
	}
}

func TestCountdown(t *testing.T) {
	p := newTestPong()

	p.Advance(created.Add(2 * time.Second))
	if got := pongState(p).Countdown; got != 3000 {
		t.Errorf("countdown = %d, want 3000", got)
	}
	if p.Status() != models.MatchWaiting {
		t.Fatalf("status = %s, want waiting", p.Status())
	}

	p.Advance(created.Add(StartDelay + time.Millisecond))
	if p.Status() != models.MatchRunning {
		t.Errorf("status = %s, want running", p.Status())
	}
}

func TestPaddleMovesAndStopsAtWall(t *testing.T) {
	p := running(t)
	if err := p.HandleInput(1, []InputFrame{{KeyW: true}}); err != nil {
		t.Fatal(err)
	}

	p.Advance(created)
	if y := pongState(p).Players[0].Y; y != 240 {
		t.Errorf("y after one step = %v, want 240", y)
	}

	for i := 0; i < 40; i++ {
		p.ball, p.velocity = NewVec2(512, 300), NewVec2(0.0001, 0)
		p.Advance(created)
	}
	if y := pongState(p).Players[0].Y; y != 0 {
		t.Errorf("y at top = %v, want 0", y)
	}
}

func TestBallReflectsOffWall(t *testing.T) {
	p := running(t)
	p.ball, p.velocity = NewVec2(500, 2), NewVec2(4, -4)

	p.Advance(created)
	s := pongState(p)
	if s.Ball.Y != 2 || s.Ball.SpeedY != 4 {
		t.Errorf("ball after wall = y %v speedY %v, want 2 and 4", s.Ball.Y, s.Ball.SpeedY)
	}
}

func TestBallReflectsOffPaddle(t *testing.T) {
	p := running(t)
	p.ball, p.velocity = NewVec2(12, 300), NewVec2(-4, 4)

	p.Advance(created)
	s := pongState(p)
	if s.Ball.X != 12 || s.Ball.SpeedX != 4 {
		t.Errorf("ball after paddle = x %v speedX %v, want 12 and 4", s.Ball.X, s.Ball.SpeedX)
	}
	if s.Players[1].Score != 0 {
		t.Errorf("score = %d, want 0", s.Players[1].Score)
	}
}

func TestMissesUntilWin(t *testing.T) {
	p := running(t)

	for i := 1; i <= ScoreToWin; i++ {
		p.state.Players[0].Y = 400
		p.ball, p.velocity = NewVec2(12, 50), NewVec2(-4, 4)
		p.Advance(created)

		if got := pongState(p).Players[1].Score; got != i {
			t.Fatalf("after miss %d score = %d", i, got)
		}
	}

	if p.Status() != models.MatchFinished {
		t.Fatalf("status = %s, want finished", p.Status())
	}
	if p.Winner() != 2 {
		t.Fatalf("winner = %d, want 2", p.Winner())
	}

	final := pongState(p)
	p.Advance(created.Add(time.Minute))
	_ = p.HandleInput(1, []InputFrame{{KeyW: true, KeyEscape: true}})
	p.Advance(created.Add(2 * time.Minute))
	if p.Forfeit(2) {
		t.Error("forfeit of finished session reported true")
	}
	if !reflect.DeepEqual(final, pongState(p)) {
		t.Error("finished session state changed")
	}
}

func TestPauseOnEscapeEdge(t *testing.T) {
	p := running(t)

	_ = p.HandleInput(2, []InputFrame{{KeyEscape: true}})
	p.Advance(created)
	if p.Status() != models.MatchPaused {
		t.Fatalf("status = %s, want paused", p.Status())
	}

	// Still holding escape is not a new press.
	_ = p.HandleInput(2, []InputFrame{{KeyEscape: true}})
	before := pongState(p)
	p.Advance(created)
	if p.Status() != models.MatchPaused {
		t.Fatalf("status = %s, want paused", p.Status())
	}
	if !reflect.DeepEqual(before, pongState(p)) {
		t.Error("paused session moved")
	}

	_ = p.HandleInput(2, []InputFrame{{}})
	_ = p.HandleInput(1, []InputFrame{{KeyEscape: true}})
	p.Advance(created)
	if p.Status() != models.MatchRunning {
		t.Errorf("status = %s, want running", p.Status())
	}
}

func TestInputFromStranger(t *testing.T) {
	p := running(t)
	if err := p.HandleInput(99, []InputFrame{{KeyW: true}}); err != ErrNotParticipant {
		t.Errorf("err = %v, want ErrNotParticipant", err)
	}
}

func TestForfeit(t *testing.T) {
	p := running(t)
	if p.Forfeit(99) {
		t.Error("stranger forfeit reported true")
	}
	if !p.Forfeit(1) {
		t.Fatal("forfeit reported false")
	}
	if p.Status() != models.MatchFinished || p.Winner() != 2 {
		t.Errorf("after forfeit status %s winner %d", p.Status(), p.Winner())
	}
	if p.Forfeit(2) {
		t.Error("second forfeit reported true")
	}
}

func TestStateIsACopy(t *testing.T) {
	p := running(t)
	_ = p.HandleInput(1, []InputFrame{{KeyS: true}})

	s := pongState(p)
	s.Players[0].Input[0][KeyS] = false
	s.Players[0].Score = 5

	again := pongState(p)
	if !again.Players[0].Input[0][KeyS] || again.Players[0].Score != 0 {
		t.Error("mutating a snapshot leaked into the session")
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
