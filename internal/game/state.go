package game

// InputFrame maps key codes to their pressed state for one client frame.
type InputFrame map[int]bool

// Key codes understood by pong.
const (
	KeyEscape = 27
	KeyS      = 83
	KeyW      = 87
)

// PaddleSize is the paddle footprint in court units.
type PaddleSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PongPlayer is one side of the court as sent to clients.
type PongPlayer struct {
	ID     int64        `json:"id"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Score  int          `json:"score"`
	Input  []InputFrame `json:"input"`
	Paddle PaddleSize   `json:"paddle"`
}

// BallState is the ball as sent to clients.
type BallState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SpeedX float64 `json:"speedX"`
	SpeedY float64 `json:"speedY"`
	Radius float64 `json:"radius"`
}

// PongState is the full snapshot of a pong session.
type PongState struct {
	Status    string        `json:"status"`
	WinnerID  int64         `json:"winnerId"`
	Countdown int64         `json:"countdown"`
	Players   [2]PongPlayer `json:"players"`
	Ball      BallState     `json:"ball"`
}

func (s PongState) clone() PongState {
	out := s
	for i := range out.Players {
		out.Players[i].Input = copyFrames(s.Players[i].Input)
	}
	return out
}

func copyFrames(frames []InputFrame) []InputFrame {
	if frames == nil {
		return nil
	}
	out := make([]InputFrame, len(frames))
	for i, f := range frames {
		c := make(InputFrame, len(f))
		for k, v := range f {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

func held(frames []InputFrame, key int) bool {
	for _, f := range frames {
		if f[key] {
			return true
		}
	}
	return false
}
