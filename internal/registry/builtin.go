package registry

import "github.com/mesh-intelligence/keystone/pkg/types"

// Discriminators of the built-in CRM profile variants.
const (
	VariantPersonal  = "personal"
	VariantCorporate = "corporate"
)

// DependentKindAddress is the kind of address dependents.
const DependentKindAddress = "address"

// BuiltinVariants returns the customer profile variants: personal profiles
// carry a split name and its kana reading, corporate profiles a company name.
func BuiltinVariants() []types.VariantSchema {
	return []types.VariantSchema{
		{
			Discriminator: VariantPersonal,
			Description:   "individual customer profile",
			Fields: []types.FieldSpec{
				{Name: "first_name", Kind: types.FieldText, Required: true, Rules: "max=50"},
				{Name: "last_name", Kind: types.FieldText, Required: true, Rules: "max=50"},
				{Name: "first_name_kana", Kind: types.FieldKana, Required: true, Rules: "max=50"},
				{Name: "last_name_kana", Kind: types.FieldKana, Required: true, Rules: "max=50"},
				{Name: "gender_type", Kind: types.FieldEnum, Required: true, Values: []string{"male", "female", "other"}},
				{Name: "birth_date", Kind: types.FieldDate},
			},
			Display:     []string{"last_name", "first_name"},
			DisplayKana: []string{"last_name_kana", "first_name_kana"},
		},
		{
			Discriminator: VariantCorporate,
			Description:   "corporate customer profile",
			Fields: []types.FieldSpec{
				{Name: "name", Kind: types.FieldText, Required: true, Rules: "max=100"},
				{Name: "name_kana", Kind: types.FieldKana, Required: true, Rules: "max=100"},
			},
			Display:     []string{"name"},
			DisplayKana: []string{"name_kana"},
		},
	}
}

// BuiltinDependentKinds returns the attribute schemas of dependent kinds.
// They are kept in their own registry; a dependent's kind selects the schema
// its attributes are checked against.
func BuiltinDependentKinds() []types.VariantSchema {
	return []types.VariantSchema{
		{
			Discriminator: DependentKindAddress,
			Description:   "postal address",
			Fields: []types.FieldSpec{
				{Name: "postal_code", Kind: types.FieldText, Required: true, Rules: "max=10"},
				{Name: "prefecture", Kind: types.FieldText, Required: true, Rules: "max=10"},
				{Name: "city", Kind: types.FieldText, Required: true, Rules: "max=50"},
				{Name: "street", Kind: types.FieldText, Required: true, Rules: "max=100"},
				{Name: "building", Kind: types.FieldText, Rules: "max=100"},
				{Name: "first_name", Kind: types.FieldText, Rules: "max=50"},
				{Name: "last_name", Kind: types.FieldText, Rules: "max=50"},
			},
			Display: []string{"postal_code", "prefecture", "city", "street", "building"},
		},
	}
}

// Builtin returns a registry holding BuiltinVariants.
func Builtin() *Registry {
	r := New()
	if err := r.RegisterAll(BuiltinVariants()); err != nil {
		panic(err)
	}
	return r
}

// BuiltinDependents returns a registry holding BuiltinDependentKinds.
func BuiltinDependents() *Registry {
	r := New()
	if err := r.RegisterAll(BuiltinDependentKinds()); err != nil {
		panic(err)
	}
	return r
}
