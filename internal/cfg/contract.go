package cfg

// Contract is `{ functions, bytecode }` (spec §3). Functions[0] is always
// the loader (address 0).
type Contract struct {
	Functions []*Function
	Bytecode  []byte
}

// NewContract creates a contract with an (empty, address-0) loader
// function already in place as Functions[0].
func NewContract(bytecode []byte) *Contract {
	loader := NewFunction(0)
	return &Contract{Functions: []*Function{loader}, Bytecode: bytecode}
}

// Loader returns the always-present address-0 loader function.
func (c *Contract) Loader() *Function { return c.Functions[0] }

// AddFunction registers a newly-discovered function (spec §3 Lifecycle:
// "Functions are owned by the contract and may be added by function
// discovery during optimization").
func (c *Contract) AddFunction(f *Function) { c.Functions = append(c.Functions, f) }

// FunctionAt returns the function whose header is at address, if any.
func (c *Contract) FunctionAt(address uint64) *Function {
	for _, f := range c.Functions {
		if f.HeaderNode != nil && f.HeaderNode.Address == address {
			return f
		}
	}
	return nil
}
