package scripting

import (
	"fmt"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/notepid/twilight_arcade/internal/account"
)

// RepliesScript is the file loaded from the scripts directory.
const RepliesScript = "replies.lua"

// Replier answers idle free text with the script's on_message(text, user)
// function. Calls are serialised because a Lua state is single-threaded.
type Replier struct {
	mu sync.Mutex
	vm *VM
}

// NewReplier loads dir/replies.lua. repo may be nil, in which case the
// script has no "users" module.
func NewReplier(dir string, repo *account.Repo) (*Replier, error) {
	vm := newReplyVM(repo)
	if err := vm.LoadScript(filepath.Join(dir, RepliesScript)); err != nil {
		vm.Close()
		return nil, err
	}
	return checkReplier(vm)
}

// NewReplierFromString builds a replier from inline Lua source.
func NewReplierFromString(src string, repo *account.Repo) (*Replier, error) {
	vm := newReplyVM(repo)
	if err := vm.LoadString(src); err != nil {
		vm.Close()
		return nil, err
	}
	return checkReplier(vm)
}

func newReplyVM(repo *account.Repo) *VM {
	vm := NewVM()
	if repo != nil {
		NewUserAPI(repo).Register(vm.L)
	}
	return vm
}

func checkReplier(vm *VM) (*Replier, error) {
	if !vm.HasFunction("on_message") {
		vm.Close()
		return nil, fmt.Errorf("script does not define on_message")
	}
	return &Replier{vm: vm}, nil
}

// Reply returns the script's answer to text, or "" for no reply.
func (r *Replier) Reply(userID int64, name, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.vm.L.NewTable()
	user.RawSetString("id", lua.LNumber(userID))
	user.RawSetString("name", lua.LString(name))
	return r.vm.CallString("on_message", lua.LString(text), user)
}

// Close releases the Lua state.
func (r *Replier) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm.Close()
}
