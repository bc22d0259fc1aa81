package plugin

import (
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"
)

// Runtime wraps goja VM with plugin-specific bindings
type Runtime struct {
	vm     *goja.Runtime
	logger zerolog.Logger
}

// NewRuntime creates a new Runtime with all necessary bindings
func NewRuntime(logger zerolog.Logger) *Runtime {
	vm := goja.New()
	r := &Runtime{
		vm:     vm,
		logger: logger,
	}
	r.setupBindings()
	return r
}

func (r *Runtime) setupBindings() {
	r.setupConsole()
	r.setupUtils()
}

// setupConsole bridges console.* to the plugin logger
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	bind := func(name string, level zerolog.Level) {
		console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			r.logger.WithLevel(level).Msgf("[plugin] %v", args)
			return goja.Undefined()
		})
	}
	bind("log", zerolog.InfoLevel)
	bind("info", zerolog.InfoLevel)
	bind("warn", zerolog.WarnLevel)
	bind("error", zerolog.ErrorLevel)
	bind("debug", zerolog.DebugLevel)

	r.vm.Set("console", console)
}

func (r *Runtime) setupUtils() {
	utils := r.vm.NewObject()

	// uuid returns a random request identifier
	utils.Set("uuid", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(uuid.NewString())
	})

	// queryParam returns the first value of a query parameter in a URL, or ""
	utils.Set("queryParam", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(r.vm.ToValue("queryParam requires url and name"))
		}
		u, err := url.Parse(call.Arguments[0].String())
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("invalid url: %v", err)))
		}
		return r.vm.ToValue(u.Query().Get(call.Arguments[1].String()))
	})

	// setQueryParam returns url with name set to value
	utils.Set("setQueryParam", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 3 {
			panic(r.vm.ToValue("setQueryParam requires url, name and value"))
		}
		u, err := url.Parse(call.Arguments[0].String())
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("invalid url: %v", err)))
		}
		q := u.Query()
		q.Set(call.Arguments[1].String(), call.Arguments[2].String())
		u.RawQuery = q.Encode()
		return r.vm.ToValue(u.String())
	})

	// sha3 returns the hex SHA3-256 digest of a string, e.g. for signing headers
	utils.Set("sha3", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("sha3 requires a string"))
		}
		sum := sha3.Sum256([]byte(call.Arguments[0].String()))
		return r.vm.ToValue(hex.EncodeToString(sum[:]))
	})

	r.vm.Set("utils", utils)
}

// RunScript executes JavaScript code and returns the result
func (r *Runtime) RunScript(script string) (goja.Value, error) {
	return r.vm.RunString(script)
}

// Intercept calls the script's intercept(msg) and exports the returned object.
// A nil map means the script returned nothing.
func (r *Runtime) Intercept(msg map[string]interface{}) (map[string]interface{}, error) {
	fnVal := r.vm.Get("intercept")
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil, fmt.Errorf("intercept function not defined")
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("intercept is not a function")
	}

	result, err := fn(goja.Undefined(), r.vm.ToValue(msg))
	if err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			return nil, fmt.Errorf("%s", jsErr.Value().String())
		}
		return nil, err
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}

	out, ok := result.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("intercept must return an object")
	}
	return out, nil
}

// Interrupt stops a running script
func (r *Runtime) Interrupt(reason string) {
	r.vm.Interrupt(reason)
}
