package game

import (
	"math/rand/v2"
	"time"

	"github.com/playmatatu/arena/internal/models"
)

// PongName is the registry key for pong.
const PongName = "pong"

const (
	CourtWidth   = 1024
	CourtHeight  = 600
	PaddleWidth  = 10
	PaddleHeight = 100
	PaddleStep   = 10
	BallRadius   = 5
	BallSpeed    = 4
	ScoreToWin   = 10
	StartDelay   = 5 * time.Second
)

// Pong is a two-paddle session. Player 0 defends the left plane at x=10,
// player 1 the right plane at x=1014.
type Pong struct {
	matchID   int64
	createdAt time.Time
	state     PongState
	ball      Vec2
	velocity  Vec2
	// togglePause is set on a rising edge of Escape and consumed by Advance.
	togglePause bool
	escHeld     [2]bool
	rng         *rand.Rand
}

func NewPong(m models.Match) *Pong {
	p := &Pong{
		matchID:   m.ID,
		createdAt: m.CreatedAt,
		rng:       rand.New(rand.NewPCG(uint64(m.ID), uint64(m.CreatedAt.UnixNano()))),
	}
	p.state = PongState{
		Status:    models.MatchWaiting,
		Countdown: StartDelay.Milliseconds(),
	}
	p.state.Players[0] = PongPlayer{
		ID:     m.Players[0].PlayerID,
		X:      PaddleWidth,
		Y:      CourtHeight/2 - PaddleHeight/2,
		Paddle: PaddleSize{Width: PaddleWidth, Height: PaddleHeight},
	}
	p.state.Players[1] = PongPlayer{
		ID:     m.Players[1].PlayerID,
		X:      CourtWidth - PaddleWidth,
		Y:      CourtHeight/2 - PaddleHeight/2,
		Paddle: PaddleSize{Width: PaddleWidth, Height: PaddleHeight},
	}
	p.serve()
	return p
}

func (p *Pong) MatchID() int64 { return p.matchID }

func (p *Pong) Players() [2]int64 {
	return [2]int64{p.state.Players[0].ID, p.state.Players[1].ID}
}

func (p *Pong) Status() string { return p.state.Status }

func (p *Pong) Winner() int64 { return p.state.WinnerID }

// State returns a PongState copy.
func (p *Pong) State() any {
	return p.state.clone()
}

func (p *Pong) HandleInput(playerID int64, frames []InputFrame) error {
	i := p.index(playerID)
	if i < 0 {
		return ErrNotParticipant
	}
	if p.state.Status == models.MatchFinished {
		return nil
	}

	p.state.Players[i].Input = copyFrames(frames)

	esc := held(frames, KeyEscape)
	if esc && !p.escHeld[i] {
		p.togglePause = true
	}
	p.escHeld[i] = esc
	return nil
}

func (p *Pong) Forfeit(playerID int64) bool {
	i := p.index(playerID)
	if i < 0 || p.state.Status == models.MatchFinished {
		return false
	}
	p.state.Status = models.MatchFinished
	p.state.WinnerID = p.state.Players[1-i].ID
	return true
}

func (p *Pong) Advance(now time.Time) {
	switch p.state.Status {
	case models.MatchFinished:
		return
	case models.MatchWaiting:
		p.togglePause = false
		p.state.Countdown = p.createdAt.Add(StartDelay).Sub(now).Milliseconds()
		if p.state.Countdown <= 0 {
			p.state.Countdown = 0
			p.state.Status = models.MatchRunning
		}
		return
	}

	if p.togglePause {
		p.togglePause = false
		if p.state.Status == models.MatchPaused {
			p.state.Status = models.MatchRunning
		} else {
			p.state.Status = models.MatchPaused
		}
	}
	if p.state.Status == models.MatchPaused {
		return
	}

	p.movePaddles()
	p.moveBall()
	p.checkScore()
	p.syncBall()
}

func (p *Pong) movePaddles() {
	for i := range p.state.Players {
		pl := &p.state.Players[i]
		up := held(pl.Input, KeyW)
		down := held(pl.Input, KeyS)
		if pl.Y <= 0 {
			up = false
		} else if pl.Y >= CourtHeight-PaddleHeight {
			down = false
		}
		if up {
			pl.Y -= PaddleStep
		}
		if down {
			pl.Y += PaddleStep
		}
	}
}

func (p *Pong) moveBall() {
	next := p.ball.Plus(p.velocity)

	if next.Y < 0 {
		next.Y = -next.Y
		p.velocity = p.velocity.FlipY()
	} else if next.Y > CourtHeight {
		next.Y = CourtHeight - (next.Y - CourtHeight)
		p.velocity = p.velocity.FlipY()
	}

	left, right := &p.state.Players[0], &p.state.Players[1]
	if next.X < left.X {
		if !p.hitsPaddle(left) {
			p.score(right)
			return
		}
		next.X = left.X + (left.X - next.X)
		p.velocity = p.velocity.FlipX()
	} else if next.X > right.X {
		if !p.hitsPaddle(right) {
			p.score(left)
			return
		}
		next.X = right.X - (next.X - right.X)
		p.velocity = p.velocity.FlipX()
	}
	p.ball = NewVec2(next.X, next.Y)
}

// hitsPaddle follows the ball's path to the paddle plane and checks where it
// crosses.
func (p *Pong) hitsPaddle(pl *PongPlayer) bool {
	lambda := (pl.X - p.ball.X) / p.velocity.X
	y := p.ball.Y + lambda*p.velocity.Y
	return y >= pl.Y && y <= pl.Y+pl.Paddle.Height
}

func (p *Pong) score(scorer *PongPlayer) {
	scorer.Score++
	p.serve()
}

// serve puts the ball back in the centre with a random diagonal.
func (p *Pong) serve() {
	p.ball = NewVec2(CourtWidth/2, CourtHeight/2)
	p.velocity = NewVec2(BallSpeed*p.sign(), BallSpeed*p.sign())
	p.syncBall()
}

func (p *Pong) sign() float64 {
	if p.rng.IntN(2) == 0 {
		return -1
	}
	return 1
}

func (p *Pong) checkScore() {
	for _, pl := range p.state.Players {
		if pl.Score >= ScoreToWin {
			p.state.Status = models.MatchFinished
			p.state.WinnerID = pl.ID
		}
	}
}

func (p *Pong) syncBall() {
	p.state.Ball = BallState{
		X:      p.ball.X,
		Y:      p.ball.Y,
		SpeedX: p.velocity.X,
		SpeedY: p.velocity.Y,
		Radius: BallRadius,
	}
}

func (p *Pong) index(playerID int64) int {
	for i, pl := range p.state.Players {
		if pl.ID == playerID {
			return i
		}
	}
	return -1
}
