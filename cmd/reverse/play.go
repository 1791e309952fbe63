package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/utakingdom/reverse/internal/channel/ws"
	"github.com/utakingdom/reverse/internal/game"
	"github.com/utakingdom/reverse/internal/identity"
	"github.com/utakingdom/reverse/internal/media"
	"github.com/utakingdom/reverse/internal/session"
)

func play(ctx context.Context, cfg *cliConfig) error {
	idPath := cfg.identity
	if idPath == "" {
		var err error
		idPath, err = identity.DefaultPath()
		if err != nil {
			return err
		}
	}
	selfID, err := identity.Load(idPath)
	if err != nil {
		return err
	}

	code := strings.ToUpper(cfg.room)
	if cfg.create {
		code, err = createRoom(cfg.server)
		if err != nil {
			return err
		}
	}

	conn, err := ws.Dial(ctx, cfg.server, code)
	if err != nil {
		return err
	}
	defer conn.Close()

	sess := session.New(conn, session.Config{
		RoomCode:   code,
		SelfID:     selfID,
		Name:       cfg.name,
		Creator:    cfg.create,
		ExportFile: cfg.export,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- sess.Run(runCtx) }()

	fmt.Printf("room %s (you are %s)\n", code, cfg.name)
	if cfg.create {
		fmt.Printf("join QR: %s/room/%s/qr.png\n", strings.TrimSuffix(cfg.server, "/"), code)
	}
	fmt.Println(`commands: status, players, start, topic <file> <label>, answer <file> [effect], results, quit`)

	svc := media.New(cfg.mediaURL)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := dispatch(ctx, sess, svc, line); done {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, sess *session.Session, svc media.Service, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "status":
		st := sess.GameState()
		fmt.Printf("phase=%s round=%d host=%v\n", st.Phase, st.Round, sess.IsHost())
	case "players":
		for _, p := range sess.Players() {
			tag := ""
			if p.IsHost {
				tag = " (host)"
			}
			fmt.Printf("- %s%s\n", p.Name, tag)
		}
	case "start":
		err = sess.StartGame()
	case "topic":
		if len(fields) < 3 {
			err = fmt.Errorf("usage: topic <file> <label>")
			break
		}
		err = submitTopic(ctx, sess, svc, fields[1], strings.Join(fields[2:], " "))
	case "answer":
		effect := game.EffectNone
		if len(fields) >= 3 {
			effect = fields[2]
		}
		if len(fields) < 2 {
			err = fmt.Errorf("usage: answer <file> [effect]")
			break
		}
		err = submitAnswer(ctx, sess, svc, fields[1], effect)
	case "results":
		printResults(sess)
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	if err != nil {
		// Media or protocol failures leave local game state unchanged, so
		// the same command can simply be retried.
		fmt.Printf("error: %v\n", err)
	}
	return false
}

// submitTopic uploads the recorded audio and its reversed rendition, then
// broadcasts the Submission.
func submitTopic(ctx context.Context, sess *session.Session, svc media.Service, file, label string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	name := filepath.Base(file)

	originalRef, err := svc.Upload(ctx, name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	reversed, err := svc.Reverse(ctx, name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer reversed.Close()
	reversedRef, err := svc.Upload(ctx, "reversed_"+name, reversed)
	if err != nil {
		return err
	}

	return sess.SubmitTopic(game.Submission{
		OriginalRef: originalRef,
		ReversedRef: reversedRef,
		AnswerLabel: label,
	})
}

// submitAnswer optionally applies a voice effect, uploads the result and its
// reversed (recovered) rendition, then broadcasts the Answer.
func submitAnswer(ctx context.Context, sess *session.Session, svc media.Service, file, effect string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	name := filepath.Base(file)

	final := data
	if effect != game.EffectNone {
		processed, err := svc.Process(ctx, name, effect, bytes.NewReader(data))
		if err != nil {
			return err
		}
		final, err = io.ReadAll(processed)
		processed.Close()
		if err != nil {
			return err
		}
	}

	responseRef, err := svc.Upload(ctx, name, bytes.NewReader(final))
	if err != nil {
		return err
	}
	recovered, err := svc.Reverse(ctx, name, bytes.NewReader(final))
	if err != nil {
		return err
	}
	defer recovered.Close()
	recoveredRef, err := svc.Upload(ctx, "recovered_"+name, recovered)
	if err != nil {
		return err
	}

	return sess.SubmitAnswer(game.Answer{
		ResponseRef:  responseRef,
		RecoveredRef: recoveredRef,
		EffectTag:    effect,
	})
}

func printResults(sess *session.Session) {
	names := make(map[string]string)
	for _, p := range sess.Players() {
		names[p.ID] = p.Name
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		if len(id) > 8 {
			return id[:8]
		}
		return id
	}
	for i, pairing := range sess.Results() {
		fmt.Printf("%d. %s's topic %q\n", i+1, name(pairing.TopicPlayerID), pairing.Topic.AnswerLabel)
		if pairing.Answer != nil {
			fmt.Printf("   answered by %s (effect: %s)\n", name(pairing.AnswerPlayerID), pairing.Answer.EffectTag)
			fmt.Printf("   listen: %s vs %s\n", pairing.Topic.OriginalRef, pairing.Answer.RecoveredRef)
		} else {
			fmt.Println("   no answer submitted")
		}
	}
}
