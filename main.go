package main

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"gymchess/bots"
	"gymchess/config"
	"gymchess/dispatch"
	"gymchess/logging"
	"gymchess/rules"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The desktop client plays a single game against the dispatcher.
const gameID = "desktop"

var (
	screenWidth  int
	screenHeight int
	squareSize   int

	lightSquare = color.RGBA{240, 217, 181, 255}
	darkSquare  = color.RGBA{181, 136, 99, 255}
	whiteMan    = color.RGBA{150, 150, 150, 255}
	blackMan    = color.RGBA{30, 30, 30, 255}
)

type gameMode int

const (
	modeBot gameMode = iota
	modeLocal
)

var promotionKeys = map[ebiten.Key]chess.PieceType{
	ebiten.KeyQ: chess.Queen,
	ebiten.KeyR: chess.Rook,
	ebiten.KeyB: chess.Bishop,
	ebiten.KeyN: chess.Knight,
}

var pieceLetters = map[chess.PieceType]string{
	chess.King:   "K",
	chess.Queen:  "Q",
	chess.Rook:   "R",
	chess.Bishop: "B",
	chess.Knight: "N",
	chess.Pawn:   "P",
}

type Game struct {
	pos        *rules.Position
	dispatcher *dispatch.Dispatcher
	tiers      []bots.Tier
	tier       int
	log        zerolog.Logger

	results     chan dispatch.Result
	pendingSeq  uint64
	botThinking bool

	mode         gameMode
	playerColor  chess.Color
	gameStarted  bool
	promotions   []rules.Move
	selected     chess.Square
	dragging     chess.Piece
	dragX, dragY int
	boardOffsetX int
	boardOffsetY int
}

func NewGame(d *dispatch.Dispatcher, policy *bots.Policy, logger zerolog.Logger) *Game {
	screenWidth, screenHeight = ebiten.ScreenSizeInFullscreen()
	if screenWidth == 0 || screenHeight == 0 {
		screenWidth, screenHeight = 800, 880
	}

	// leave room for the status lines above and captured pieces below
	boardHeight := screenHeight - 120
	squareSize = boardHeight / 8
	if screenWidth/8 < squareSize {
		squareSize = screenWidth / 8
	}

	g := &Game{
		dispatcher:   d,
		tiers:        policy.Tiers(),
		log:          logger,
		results:      make(chan dispatch.Result, 4),
		dragging:     chess.NoPiece,
		selected:     chess.NoSquare,
		boardOffsetX: (screenWidth - squareSize*8) / 2,
		boardOffsetY: 80,
	}
	for i, t := range g.tiers {
		if t.ID == "medium" {
			g.tier = i
		}
	}
	return g
}

func (g *Game) currentTier() bots.Tier {
	return g.tiers[g.tier]
}

func (g *Game) Update() error {
	if !g.gameStarted {
		g.updateMenu()
		return nil
	}

	select {
	case res := <-g.results:
		g.applyBotResult(res)
	default:
	}

	if len(g.promotions) > 0 {
		g.updatePromotion()
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.dispatcher.Cancel(gameID)
		g.botThinking = false
		g.gameStarted = false
		return nil
	case inpututil.IsKeyJustPressed(ebiten.KeyU):
		g.takeBack()
	case inpututil.IsKeyJustPressed(ebiten.KeyB) && g.mode == modeBot:
		g.tier = (g.tier + 1) % len(g.tiers)
		g.log.Info().Str("tier", g.currentTier().ID).Msg("difficulty changed")
	}

	if !g.humanToMove() || g.botThinking || g.pos.IsGameOver() {
		return nil
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		if sq, ok := g.squareAt(x, y); ok {
			piece := g.pos.Board().Piece(sq)
			if piece != chess.NoPiece && piece.Color() == g.pos.Turn() {
				g.selected = sq
				g.dragging = piece
			}
		}
	}
	if g.dragging != chess.NoPiece {
		g.dragX, g.dragY = ebiten.CursorPosition()
	}

	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) && g.dragging != chess.NoPiece {
		x, y := ebiten.CursorPosition()
		if target, ok := g.squareAt(x, y); ok {
			switch moves := movesTo(g.pos.LegalMovesFrom(g.selected), target); {
			case len(moves) == 1:
				g.playHuman(moves[0])
			case len(moves) > 1:
				g.promotions = moves
			}
		}
		g.selected = chess.NoSquare
		g.dragging = chess.NoPiece
	}
	return nil
}

// updatePromotion waits for the promotion piece; Escape abandons the move.
func (g *Game) updatePromotion() {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.promotions = nil
		return
	}
	for key, kind := range promotionKeys {
		if !inpututil.IsKeyJustPressed(key) {
			continue
		}
		for _, m := range g.promotions {
			if m.Promotion == kind {
				g.promotions = nil
				g.playHuman(m)
				return
			}
		}
	}
}

func (g *Game) humanToMove() bool {
	return g.mode == modeLocal || g.pos.Turn() == g.playerColor
}

func (g *Game) playHuman(m rules.Move) {
	if err := g.pos.Apply(m); err != nil {
		g.log.Warn().Err(err).Str("move", m.String()).Msg("player move rejected")
		return
	}
	if g.mode == modeBot {
		g.requestBotMove()
	}
}

func (g *Game) updateMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		g.tier = (g.tier + 1) % len(g.tiers)
	}
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	x, y := ebiten.CursorPosition()
	btnWidth := 200
	btnHeight := 60
	btnY := screenHeight/2 + 100

	if y > btnY && y < btnY+btnHeight {
		if x > screenWidth/2-btnWidth-20 && x < screenWidth/2-20 {
			g.playerColor = chess.White
			g.startGame()
		} else if x > screenWidth/2+20 && x < screenWidth/2+20+btnWidth {
			g.playerColor = chess.Black
			g.startGame()
		}
	}
	localY := btnY + btnHeight + 20
	if y > localY && y < localY+btnHeight && x > screenWidth/2-btnWidth/2 && x < screenWidth/2+btnWidth/2 {
		g.mode = modeLocal
		g.playerColor = chess.White
		g.pos = rules.NewPosition()
		g.gameStarted = true
		g.botThinking = false
		g.promotions = nil
		g.log.Info().Msg("two player game started")
	}
}

func (g *Game) startGame() {
	g.mode = modeBot
	g.pos = rules.NewPosition()
	g.gameStarted = true
	g.botThinking = false
	g.promotions = nil
	g.log.Info().Str("tier", g.currentTier().ID).Str("player", g.playerColor.Name()).Msg("game started")
	if g.playerColor == chess.Black {
		g.requestBotMove()
	}
}

// requestBotMove hands the current position to the dispatcher. The result
// arrives on g.results and is applied from Update.
func (g *Game) requestBotMove() {
	if g.pos.IsGameOver() {
		return
	}
	req := dispatch.Request{GameID: gameID, FEN: g.pos.String(), Difficulty: g.currentTier().ID}
	seq, err := g.dispatcher.Submit(context.Background(), req, func(r dispatch.Result) {
		select {
		case g.results <- r:
		default:
		}
	})
	if err != nil {
		g.log.Error().Err(err).Msg("bot request failed")
		return
	}
	g.pendingSeq = seq
	g.botThinking = true
}

func (g *Game) applyBotResult(res dispatch.Result) {
	if res.Seq != g.pendingSeq || res.FEN != g.pos.String() {
		return
	}
	g.botThinking = false
	if res.Err != nil {
		g.log.Error().Err(res.Err).Msg("bot search failed")
		return
	}
	if res.Move == nil {
		return
	}
	if err := g.pos.Apply(*res.Move); err != nil {
		g.log.Error().Err(err).Str("move", res.Move.String()).Msg("bot move rejected")
	}
}

// takeBack undoes moves until it is the player's turn again. Two players
// take back a single move.
func (g *Game) takeBack() {
	if g.mode == modeLocal {
		_ = g.pos.Undo()
		return
	}
	g.dispatcher.Cancel(gameID)
	g.botThinking = false
	for g.pos.Ply() > 0 {
		if err := g.pos.Undo(); err != nil {
			break
		}
		if g.pos.Turn() == g.playerColor {
			return
		}
	}
	if g.pos.Turn() != g.playerColor {
		g.requestBotMove()
	}
}

// movesTo keeps the moves landing on target. More than one means a
// promotion choice.
func movesTo(moves []rules.Move, target chess.Square) []rules.Move {
	var out []rules.Move
	for _, m := range moves {
		if m.To == target {
			out = append(out, m)
		}
	}
	return out
}

// squareAt maps screen coordinates to a square, flipping the board when the
// player has black.
func (g *Game) squareAt(x, y int) (chess.Square, bool) {
	x -= g.boardOffsetX
	y -= g.boardOffsetY
	if x < 0 || x >= squareSize*8 || y < 0 || y >= squareSize*8 {
		return chess.NoSquare, false
	}
	col, row := x/squareSize, y/squareSize
	return g.squareFor(col, row), true
}

func (g *Game) squareFor(col, row int) chess.Square {
	if g.mode == modeBot && g.playerColor == chess.Black {
		return chess.NewSquare(chess.File(7-col), chess.Rank(row))
	}
	return chess.NewSquare(chess.File(col), chess.Rank(7-row))
}

func (g *Game) Draw(screen *ebiten.Image) {
	if !g.gameStarted {
		g.drawMenu(screen)
		return
	}

	board := g.pos.Board()
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			clr := lightSquare
			if (col+row)%2 == 1 {
				clr = darkSquare
			}
			px := float32(col*squareSize + g.boardOffsetX)
			py := float32(row*squareSize + g.boardOffsetY)
			vector.DrawFilledRect(screen, px, py, float32(squareSize), float32(squareSize), clr, false)

			sq := g.squareFor(col, row)
			piece := board.Piece(sq)
			if piece == chess.NoPiece || (g.dragging != chess.NoPiece && sq == g.selected) {
				continue
			}
			drawPiece(screen, piece, px+float32(squareSize)/2, py+float32(squareSize)/2)
		}
	}

	if g.dragging != chess.NoPiece {
		drawPiece(screen, g.dragging, float32(g.dragX), float32(g.dragY))
	}

	g.drawStatus(screen)
	g.drawCaptured(screen)
}

func (g *Game) drawStatus(screen *ebiten.Image) {
	var status, help string
	if g.mode == modeLocal {
		status = g.pos.Turn().Name() + " to move"
		help = "Two players  [U] take back  [R] menu"
	} else {
		tier := g.currentTier()
		status = "Your move"
		if g.botThinking {
			status = tier.Trainer + " is thinking..."
		} else if g.pos.Turn() != g.playerColor {
			status = tier.Trainer + " to move"
		}
		help = fmt.Sprintf("Opponent: %s (%s, ~%d Elo)  [B] change  [U] take back  [R] menu", tier.Trainer, tier.ID, tier.Elo)
	}
	if g.pos.InCheck() && !g.pos.IsCheckmate() {
		status += "  Check!"
	}
	if len(g.promotions) > 0 {
		status = "Promote to: [Q]ueen [R]ook [B]ishop k[N]ight  [Esc] cancel"
	}
	ebitenutil.DebugPrintAt(screen, status, 20, 20)
	ebitenutil.DebugPrintAt(screen, help, 20, 40)

	switch outcome := g.pos.Outcome(); {
	case g.pos.IsCheckmate():
		ebitenutil.DebugPrintAt(screen, "Checkmate! Result: "+outcome.String(), screenWidth/2-80, 60)
	case outcome == chess.Draw:
		ebitenutil.DebugPrintAt(screen, "Draw by "+g.pos.DrawMethod().String(), screenWidth/2-80, 60)
	}
}

// drawCaptured lists lost pieces under the board, white's losses first.
func (g *Game) drawCaptured(screen *ebiten.Image) {
	captured := g.pos.Captured()
	y := g.boardOffsetY + squareSize*8 + 8
	for i, c := range []chess.Color{chess.White, chess.Black} {
		letters := make([]string, 0, len(captured[c]))
		for _, kind := range captured[c] {
			l := pieceLetters[kind]
			if c == chess.Black {
				l = strings.ToLower(l)
			}
			letters = append(letters, l)
		}
		line := c.Name() + " lost: " + strings.Join(letters, " ")
		ebitenutil.DebugPrintAt(screen, line, g.boardOffsetX, y+i*16)
	}
}

func (g *Game) drawMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Gym Chess", screenWidth/2-30, screenHeight/2-50)
	tier := g.currentTier()
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Opponent: %s (%s)  [B] to change", tier.Trainer, tier.ID), screenWidth/2-120, screenHeight/2)
	ebitenutil.DebugPrintAt(screen, "Choose your color:", screenWidth/2-60, screenHeight/2+40)

	btnY := float32(screenHeight/2 + 100)
	vector.DrawFilledRect(screen, float32(screenWidth/2-220), btnY, 200, 60, color.RGBA{200, 200, 200, 255}, false)
	ebitenutil.DebugPrintAt(screen, "Play white", screenWidth/2-150, int(btnY)+20)
	vector.DrawFilledRect(screen, float32(screenWidth/2+20), btnY, 200, 60, color.RGBA{50, 50, 50, 255}, false)
	ebitenutil.DebugPrintAt(screen, "Play black", screenWidth/2+90, int(btnY)+20)
	vector.DrawFilledRect(screen, float32(screenWidth/2-100), btnY+80, 200, 60, color.RGBA{120, 120, 160, 255}, false)
	ebitenutil.DebugPrintAt(screen, "Two players", screenWidth/2-33, int(btnY)+100)
}

func drawPiece(screen *ebiten.Image, piece chess.Piece, cx, cy float32) {
	fill, ring := whiteMan, color.RGBA{255, 255, 255, 255}
	label := pieceLetters[piece.Type()]
	if piece.Color() == chess.Black {
		fill, ring = blackMan, color.RGBA{0, 0, 0, 255}
		label = strings.ToLower(label)
	}
	r := float32(squareSize) * 0.38
	vector.DrawFilledCircle(screen, cx, cy, r+2, ring, true)
	vector.DrawFilledCircle(screen, cx, cy, r, fill, true)

	// debug font glyphs are 6x16 and always white
	ebitenutil.DebugPrintAt(screen, label, int(cx)-3, int(cy)-8)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Setup(cfg.Logs.Style, cfg.Logs.Level)

	policy := bots.NewPolicy(cfg.Tiers()...)
	d := dispatch.New(policy, dispatch.WithDelay(cfg.Bot.ThinkDelay), dispatch.WithLogger(logger))
	defer d.Close()

	game := NewGame(d, policy, logger)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Gym Chess")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(game); err != nil {
		logger.Error().Err(err).Msg("game loop exited")
	}
}
