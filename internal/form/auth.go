package form

import "strings"

// LoginForm is bound from POST /login.
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// Credentials is a parsed LoginForm.
type Credentials struct {
	Email    string
	Password string
}

func (f LoginForm) Parse() Result[Credentials] {
	f.Email = strings.TrimSpace(f.Email)
	if errs := check(f); len(errs) > 0 {
		return invalid[Credentials](errs)
	}
	return ok(Credentials{Email: f.Email, Password: f.Password})
}

// RegisterForm is bound from the multipart POST /register.  The optional
// photo travels as a file part and is handled by the caller.
type RegisterForm struct {
	FirstName       string `form:"first_name" validate:"required,max=150"`
	LastName        string `form:"last_name" validate:"required,max=150"`
	MiddleName      string `form:"middle_name" validate:"required,max=150"`
	Email           string `form:"email" validate:"required,email,max=150"`
	Password        string `form:"password" validate:"required,maxbytes=72"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// Registration is a parsed RegisterForm.
type Registration struct {
	FirstName  string
	LastName   string
	MiddleName string
	Email      string
	Password   string
}

func (f RegisterForm) Parse() Result[Registration] {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.MiddleName = strings.TrimSpace(f.MiddleName)
	f.Email = strings.TrimSpace(f.Email)
	if errs := check(f); len(errs) > 0 {
		return invalid[Registration](errs)
	}
	return ok(Registration{
		FirstName:  f.FirstName,
		LastName:   f.LastName,
		MiddleName: f.MiddleName,
		Email:      f.Email,
		Password:   f.Password,
	})
}
