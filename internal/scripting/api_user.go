package scripting

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/notepid/twilight_arcade/internal/account"
)

// userLookupTimeout bounds database calls made from Lua.
const userLookupTimeout = 2 * time.Second

// UserAPI exposes read-only account lookups to Lua as the "users" module.
type UserAPI struct {
	repo *account.Repo
}

// NewUserAPI creates a Lua user API.
func NewUserAPI(repo *account.Repo) *UserAPI {
	return &UserAPI{repo: repo}
}

// Register installs user functions in the Lua state.
func (api *UserAPI) Register(L *lua.LState) {
	userMod := L.NewTable()

	userMod.RawSetString("get", L.NewFunction(api.luaGet))
	userMod.RawSetString("top", L.NewFunction(api.luaTop))
	userMod.RawSetString("level_for", L.NewFunction(luaLevelFor))

	L.SetGlobal("users", userMod)
}

func (api *UserAPI) luaGet(L *lua.LState) int {
	id := L.CheckInt64(1)

	ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
	defer cancel()
	u, err := api.repo.Get(ctx, id)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	if u == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("user not found"))
		return 2
	}

	L.Push(userToTable(L, u))
	L.Push(lua.LNil)
	return 2
}

func (api *UserAPI) luaTop(L *lua.LState) int {
	limit := L.OptInt(1, 10)

	ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
	defer cancel()
	users, err := api.repo.Top(ctx, limit)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	tbl := L.NewTable()
	for _, u := range users {
		tbl.Append(userToTable(L, u))
	}
	L.Push(tbl)
	L.Push(lua.LNil)
	return 2
}

func luaLevelFor(L *lua.LState) int {
	L.Push(lua.LNumber(account.LevelFor(L.CheckInt64(1))))
	return 1
}

func userToTable(L *lua.LState, u *account.User) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LNumber(u.ID))
	tbl.RawSetString("name", lua.LString(u.DisplayName))
	tbl.RawSetString("points", lua.LNumber(u.Points))
	tbl.RawSetString("level", lua.LNumber(u.Level))
	tbl.RawSetString("warnings", lua.LNumber(u.Warnings))
	tbl.RawSetString("games", lua.LNumber(u.TotalGames))
	tbl.RawSetString("wins", lua.LNumber(u.TotalWins))
	return tbl
}
