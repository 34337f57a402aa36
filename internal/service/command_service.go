package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/metrics"
	"github.com/stemsi/taskbook/internal/model"
)

// SubjectStore is the part of SubjectService the command service drives.
type SubjectStore interface {
	Create(ctx context.Context, name string, capacity int) (*model.Subject, error)
	Delete(ctx context.Context, name string) error
	Book(ctx context.Context, name string, slot int, claimant string) (*model.Subject, error)
	ListFree(ctx context.Context, name string, verbose bool) ([]model.Slot, error)
}

// SubjectCatalog is the part of CatalogService the command service drives.
type SubjectCatalog interface {
	List(ctx context.Context) ([]model.SubjectSummary, error)
}

// CommandService turns chat commands into store calls and renders every
// outcome, including failures, as a CommandResult. It never returns an error
// and never puts internal error text into a reply.
type CommandService struct {
	subjects SubjectStore
	catalog  SubjectCatalog
	messages *config.Messages
	log      zerolog.Logger
}

func NewCommandService(subjects SubjectStore, catalog SubjectCatalog, messages *config.Messages, log zerolog.Logger) *CommandService {
	return &CommandService{
		subjects: subjects,
		catalog:  catalog,
		messages: messages,
		log:      log.With().Str("component", "command_service").Logger(),
	}
}

// Execute runs one command on behalf of cmd.CallerID.
func (s *CommandService) Execute(ctx context.Context, cmd model.Command) (res model.CommandResult) {
	action, known := s.messages.Action(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("command", cmd.Name).Msg("Command panicked")
			res = s.reject(KindStorageIO, s.messages.Errors.StorageIO)
		}
		label := action
		if !known {
			label = "unknown"
		}
		result := metrics.ResultOK
		if !res.OK {
			result = res.Kind
		}
		metrics.ObserveCommand(label, result)
	}()

	if !known {
		return s.reject(KindInvalidArgument, s.messages.Errors.UnknownCommand)
	}

	args := normalizeArgs(cmd.Args)
	switch action {
	case config.ActionHelp:
		return s.help()
	case config.ActionAdd:
		return s.add(ctx, args)
	case config.ActionDelete:
		return s.delete(ctx, args)
	case config.ActionSubjects:
		return s.subjectList(ctx)
	case config.ActionFree:
		return s.free(ctx, args)
	case config.ActionBook:
		return s.book(ctx, args, strings.TrimSpace(cmd.CallerID))
	default:
		return s.reject(KindInvalidArgument, s.messages.Errors.UnknownCommand)
	}
}

func (s *CommandService) help() model.CommandResult {
	m := s.messages
	var b strings.Builder
	b.WriteString(m.HelpHeader)
	b.WriteByte('\n')
	for _, action := range config.Actions {
		cmd := m.Commands[action]
		entry := m.HelpEntry
		if cmd.Usage == "" {
			entry = strings.ReplaceAll(entry, " %usage%", "")
		}
		b.WriteString(config.Format(entry,
			"%cmd%", cmd.Name,
			"%usage%", cmd.Usage,
			"%desc%", cmd.Description))
	}
	return ok(b.String())
}

func (s *CommandService) add(ctx context.Context, args []string) model.CommandResult {
	if len(args) < 2 {
		return s.reject(KindInvalidArgument, s.messages.Errors.IncorrectUsage)
	}
	name := strings.ToLower(args[0])
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return s.reject(KindInvalidArgument, s.messages.Errors.IncorrectUsage)
	}

	if _, err := s.subjects.Create(ctx, name, count); err != nil {
		return s.fail(err, s.messages.Errors.IncorrectUsage, "%sub%", name, "%count%", args[1])
	}
	return ok(config.Format(s.messages.Created, "%sub%", name, "%count%", strconv.Itoa(count)))
}

func (s *CommandService) delete(ctx context.Context, args []string) model.CommandResult {
	if len(args) < 1 {
		return s.reject(KindInvalidArgument, s.messages.Errors.IncorrectUsage)
	}
	name := strings.ToLower(args[0])

	if err := s.subjects.Delete(ctx, name); err != nil {
		return s.fail(err, s.messages.Errors.IncorrectUsage, "%sub%", name)
	}
	return ok(config.Format(s.messages.Deleted, "%sub%", name))
}

func (s *CommandService) subjectList(ctx context.Context) model.CommandResult {
	summaries, err := s.catalog.List(ctx)
	if err != nil {
		return s.fail(err, s.messages.Errors.IncorrectUsage)
	}
	if len(summaries) == 0 {
		return ok(s.messages.SubjectsEmpty)
	}

	var b strings.Builder
	b.WriteString(s.messages.SubjectsHeader)
	b.WriteByte('\n')
	for _, sum := range summaries {
		b.WriteString(config.Format(s.messages.SubjectsEntry,
			"%sub%", sum.Name,
			"%free%", strconv.Itoa(sum.Free),
			"%count%", strconv.Itoa(sum.Capacity)))
	}
	return ok(b.String())
}

func (s *CommandService) free(ctx context.Context, args []string) model.CommandResult {
	if len(args) < 1 {
		return s.reject(KindInvalidArgument, s.messages.Errors.IncorrectUsage)
	}
	name := strings.ToLower(args[0])
	verbose := len(args) > 1 && strings.EqualFold(args[1], s.messages.VerboseKeyword)

	slots, err := s.subjects.ListFree(ctx, name, verbose)
	if err != nil {
		return s.fail(err, s.messages.Errors.IncorrectUsage, "%sub%", name)
	}

	if !verbose {
		if len(slots) == 0 {
			return ok(config.Format(s.messages.FreeNone, "%sub%", name))
		}
		indices := make([]string, len(slots))
		for i, slot := range slots {
			indices[i] = strconv.Itoa(slot.Index)
		}
		return ok(strings.Join(indices, ","))
	}

	var b strings.Builder
	b.WriteString(config.Format(s.messages.FreeHeader, "%sub%", name))
	b.WriteByte('\n')
	for _, slot := range slots {
		user := s.messages.FreeTask
		if !slot.Free() {
			user = s.mention(slot.Claimant)
		}
		b.WriteString(config.Format(s.messages.FreeEntry,
			"%task%", strconv.Itoa(slot.Index),
			"%user%", user))
	}
	return ok(b.String())
}

func (s *CommandService) book(ctx context.Context, args []string, caller string) model.CommandResult {
	if len(args) < 2 || strings.TrimSpace(caller) == "" || !utf8.ValidString(caller) {
		return s.reject(KindInvalidArgument, s.messages.Errors.IncorrectUsage)
	}
	name := strings.ToLower(args[0])

	slot, err := ParseSlot(args[1])
	if err != nil {
		return s.fail(err, s.messages.Errors.IncorrectTask, "%sub%", name, "%task%", args[1])
	}

	if _, err := s.subjects.Book(ctx, name, slot, caller); err != nil {
		pairs := []string{"%sub%", name, "%task%", args[1], "%user%", s.mention(caller)}
		var conflict *BookingConflictError
		if errors.As(err, &conflict) {
			pairs = append([]string{"%task%", strconv.Itoa(conflict.Slot)}, pairs...)
		}
		return s.fail(err, s.messages.Errors.IncorrectTask, pairs...)
	}
	return ok(config.Format(s.messages.Booked,
		"%user%", s.mention(caller),
		"%task%", strconv.Itoa(slot),
		"%sub%", name))
}

func (s *CommandService) mention(claimant string) string {
	return config.Format(s.messages.Mention, "%user%", claimant)
}

// fail renders a store error. invalid is the template used for
// InvalidArgument, which depends on the command.
func (s *CommandService) fail(err error, invalid string, pairs ...string) model.CommandResult {
	kind := KindOf(err)
	e := s.messages.Errors

	var tmpl string
	switch kind {
	case KindInvalidArgument:
		tmpl = invalid
	case KindNotFound:
		tmpl = e.NotFound
	case KindAlreadyExists:
		tmpl = e.AlreadyExists
	case KindAlreadyBooked:
		tmpl = e.AlreadyBooked
	case KindSlotTaken:
		tmpl = e.SlotTaken
	case KindStorageUnavailable:
		tmpl = e.StorageUnavailable
	default:
		tmpl = e.StorageIO
	}

	if kind == KindStorageIO || kind == KindStorageUnavailable {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("Command failed")
	} else {
		s.log.Debug().Err(err).Str("kind", string(kind)).Msg("Command rejected")
	}

	return model.CommandResult{OK: false, Text: config.Format(tmpl, pairs...), Kind: string(kind)}
}

func (s *CommandService) reject(kind ErrorKind, text string) model.CommandResult {
	return model.CommandResult{OK: false, Text: text, Kind: string(kind)}
}

func ok(text string) model.CommandResult {
	return model.CommandResult{OK: true, Text: strings.TrimRight(text, "\n")}
}

func normalizeArgs(raw []string) []string {
	args := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}
