package game

import (
	"errors"
	"strings"
)

// Mark is the content of an XO cell.
type Mark byte

const (
	Empty Mark = ' '
	Human Mark = 'X'
	Bot   Mark = 'O'
)

// Board is a 3x3 grid, row-major.
type Board [9]Mark

// XO rewards.
const (
	XOWinReward  = 50
	XOLossReward = 25
	XODrawReward = 30
)

// ErrCellTaken is returned for a move on an occupied cell.
var ErrCellTaken = errors.New("cell already taken")

// ErrBadCell is returned for a move outside 0..8.
var ErrBadCell = errors.New("cell out of range")

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

var corners = [4]int{0, 2, 6, 8}

// NewBoard returns an empty board.
func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// ParseBoard builds a board from nine cells, each "X", "O" or blank.
func ParseBoard(cells [9]string) Board {
	b := NewBoard()
	for i, c := range cells {
		if c != "" && c != " " {
			b[i] = Mark(c[0])
		}
	}
	return b
}

// Status is the state of a board.
type Status int

const (
	InProgress Status = iota
	HumanWon
	BotWon
	Draw
)

// Winner returns the mark holding a full line, or Empty.
func (b Board) Winner() Mark {
	for _, l := range lines {
		if m := b[l[0]]; m != Empty && b[l[1]] == m && b[l[2]] == m {
			return m
		}
	}
	return Empty
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// Status classifies the board.
func (b Board) Status() Status {
	switch b.Winner() {
	case Human:
		return HumanWon
	case Bot:
		return BotWon
	}
	if b.Full() {
		return Draw
	}
	return InProgress
}

func (b Board) free() []int {
	var cells []int
	for i, m := range b {
		if m == Empty {
			cells = append(cells, i)
		}
	}
	return cells
}

// completing returns the first empty cell that would give m a line.
func (b Board) completing(m Mark) (int, bool) {
	for _, i := range b.free() {
		b[i] = m
		won := b.Winner() == m
		b[i] = Empty
		if won {
			return i, true
		}
	}
	return 0, false
}

// OpponentMove picks the bot's cell: win now, else block, else centre, else a
// random free corner, else a random free cell. It returns -1 on a full board.
func OpponentMove(b Board, r Rand) int {
	if i, ok := b.completing(Bot); ok {
		return i
	}
	if i, ok := b.completing(Human); ok {
		return i
	}
	if b[4] == Empty {
		return 4
	}
	var open []int
	for _, c := range corners {
		if b[c] == Empty {
			open = append(open, c)
		}
	}
	if len(open) > 0 {
		return open[r.IntN(len(open))]
	}
	free := b.free()
	if len(free) == 0 {
		return -1
	}
	return free[r.IntN(len(free))]
}

// XOState is an in-flight XO game.
type XOState struct {
	Board Board
	Moves int
}

// StartXO returns a fresh game with the human to move.
func StartXO() XOState {
	return XOState{Board: NewBoard()}
}

// XOTurn reports one human move and the bot's reply.
type XOTurn struct {
	Status  Status
	BotCell int // -1 when the bot did not move
}

// Play places the human mark on cell and lets the bot reply. A move on a
// taken or invalid cell returns an error and the unchanged state. The
// Outcome is non-nil once the game is over.
func (s XOState) Play(cell int, r Rand) (XOState, XOTurn, *Outcome, error) {
	if cell < 0 || cell >= len(s.Board) {
		return s, XOTurn{}, nil, ErrBadCell
	}
	if s.Board[cell] != Empty {
		return s, XOTurn{}, nil, ErrCellTaken
	}

	s.Board[cell] = Human
	s.Moves++
	turn := XOTurn{Status: s.Board.Status(), BotCell: -1}
	if turn.Status == InProgress {
		turn.BotCell = OpponentMove(s.Board, r)
		if turn.BotCell >= 0 {
			s.Board[turn.BotCell] = Bot
		}
		turn.Status = s.Board.Status()
	}
	return s, turn, xoOutcome(turn.Status), nil
}

func xoOutcome(st Status) *Outcome {
	switch st {
	case HumanWon:
		return &Outcome{Game: XO, Reward: XOWinReward, Reason: "XO win", Won: true, Score: XOWinReward}
	case BotWon:
		return &Outcome{Game: XO, Reward: XOLossReward, Reason: "XO participation"}
	case Draw:
		return &Outcome{Game: XO, Reward: XODrawReward, Reason: "XO draw"}
	}
	return nil
}

// String renders the board as three rows.
func (b Board) String() string {
	var sb strings.Builder
	for row := 0; row < 3; row++ {
		if row > 0 {
			sb.WriteString("---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				sb.WriteString("|")
			}
			sb.WriteByte(' ')
			sb.WriteByte(byte(b[row*3+col]))
			sb.WriteByte(' ')
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
